package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"call-console/internal/audit"

	"github.com/gin-gonic/gin"
)

type recordingEvents struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingEvents) LogEvent(ctx context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func TestParseTwilioStatusCallback(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&CallStatus=No-Answer&From=%2B15551234567&To=%2B15557654321&CallDuration=12")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseTwilioStatusCallback(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" || form.CallStatus != "no-answer" || form.CallDuration != 12 {
		t.Fatalf("unexpected form: %+v", form)
	}
	if form.From != "+15551234567" || form.To != "+15557654321" {
		t.Fatalf("unexpected from/to: %q %q", form.From, form.To)
	}

	e := form.Entry()
	if e.Type != audit.EventTypeTwilioStatus || e.Status != audit.StatusWarning || e.ExternalRef != "CA123" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	raw, err := json.Marshal(e.Data)
	if err != nil || !strings.Contains(string(raw), `"call_sid":"CA123"`) {
		t.Fatalf("unexpected data %s (%v)", raw, err)
	}
}

func TestAuditStatusMapping(t *testing.T) {
	cases := map[string]audit.Status{
		"completed":   audit.StatusSuccess,
		"busy":        audit.StatusWarning,
		"failed":      audit.StatusError,
		"ringing":     audit.StatusInfo,
		"in-progress": audit.StatusInfo,
	}
	for in, want := range cases {
		if got := (TwilioStatusForm{CallStatus: in}).AuditStatus(); got != want {
			t.Fatalf("%s: expected %s, got %s", in, want, got)
		}
	}
}

func TestTwilioSignature_KnownVector(t *testing.T) {
	// Parameters follow the example in Twilio's webhook security guide.
	params := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+12349013030"},
		"Digits":  {"1234"},
		"From":    {"+12349013030"},
		"To":      {"+18005551212"},
	}
	got := TwilioSignature("12345", "https://mycompany.com/myapp.php?foo=1&bar=2", params)
	if got != "0/KCTR6DLpKmkAf8muzZqo1nDgQ=" {
		t.Fatalf("unexpected signature %q", got)
	}
	if !ValidTwilioSignature("12345", "https://mycompany.com/myapp.php?foo=1&bar=2", params, got) {
		t.Fatalf("expected signature to validate")
	}
	if ValidTwilioSignature("other", "https://mycompany.com/myapp.php?foo=1&bar=2", params, got) {
		t.Fatalf("expected signature mismatch")
	}
}

func newStatusRouter(h TwilioStatusHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/twilio/status", h.HandleStatus)
	return r
}

func TestTwilioStatusHandler_RecordsEvent(t *testing.T) {
	events := &recordingEvents{}
	const callback = "https://console.example.com/webhooks/twilio/status"
	h := TwilioStatusHandler{Events: events, AuthToken: "secret", AccountSID: "AC1", CallbackURL: callback}
	r := newStatusRouter(h)

	form := url.Values{"CallSid": {"CA9"}, "AccountSid": {"AC1"}, "CallStatus": {"completed"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", TwilioSignature("secret", callback, form))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	if len(events.entries) != 1 || events.entries[0].ExternalRef != "CA9" {
		t.Fatalf("unexpected entries: %+v", events.entries)
	}
}

func TestTwilioStatusHandler_RejectsBadSignature(t *testing.T) {
	events := &recordingEvents{}
	r := newStatusRouter(TwilioStatusHandler{Events: events, AuthToken: "secret"})

	form := url.Values{"CallSid": {"CA9"}, "CallStatus": {"completed"}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", "bogus")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if len(events.entries) != 0 {
		t.Fatalf("expected no audit entries")
	}
}

func TestTwilioStatusHandler_RequiresCallSid(t *testing.T) {
	r := newStatusRouter(TwilioStatusHandler{Events: &recordingEvents{}})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader("CallStatus=completed"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
