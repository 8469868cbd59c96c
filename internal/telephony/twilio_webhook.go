package telephony

import (
	"net/http"
	"strconv"
	"strings"

	"call-console/internal/audit"
)

// TwilioStatusForm captures the subset of call status callback fields we care about.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
type TwilioStatusForm struct {
	CallSid      string `json:"call_sid"`
	AccountSid   string `json:"account_sid"`
	From         string `json:"from"`
	To           string `json:"to"`
	Direction    string `json:"direction"`
	CallStatus   string `json:"call_status"`
	CallDuration int    `json:"call_duration,omitempty"`
	Timestamp    string `json:"timestamp,omitempty"`
	FromCountry  string `json:"from_country,omitempty"`
	FromState    string `json:"from_state,omitempty"`
	ToCountry    string `json:"to_country,omitempty"`
}

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, err
	}
	dur, _ := strconv.Atoi(strings.TrimSpace(r.PostFormValue("CallDuration")))
	f := TwilioStatusForm{
		CallSid:      strings.TrimSpace(r.PostFormValue("CallSid")),
		AccountSid:   strings.TrimSpace(r.PostFormValue("AccountSid")),
		From:         normalizePhone(r.PostFormValue("From")),
		To:           normalizePhone(r.PostFormValue("To")),
		Direction:    r.PostFormValue("Direction"),
		CallStatus:   strings.ToLower(strings.TrimSpace(r.PostFormValue("CallStatus"))),
		CallDuration: dur,
		Timestamp:    r.PostFormValue("Timestamp"),
		FromCountry:  r.PostFormValue("FromCountry"),
		FromState:    r.PostFormValue("FromState"),
		ToCountry:    r.PostFormValue("ToCountry"),
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}

// AuditStatus maps a Twilio call status onto the audit severity scale.
func (f TwilioStatusForm) AuditStatus() audit.Status {
	switch f.CallStatus {
	case "completed":
		return audit.StatusSuccess
	case "busy", "no-answer", "canceled":
		return audit.StatusWarning
	case "failed":
		return audit.StatusError
	default:
		return audit.StatusInfo
	}
}

// Entry builds the twilio_status audit entry. The CallSid becomes the external ref.
func (f TwilioStatusForm) Entry() audit.Entry {
	region := f.FromState
	if f.FromCountry != "" {
		if region != "" {
			region += ", "
		}
		region += f.FromCountry
	}
	return audit.Entry{
		Type:        audit.EventTypeTwilioStatus,
		Status:      f.AuditStatus(),
		Message:     "twilio call " + f.CallStatus,
		Data:        f,
		Actor:       "twilio",
		Region:      region,
		ExternalRef: f.CallSid,
	}
}
