// Package notify wraps the telephony provider behind one alert contract.
// SMS and voice are two independent operations; a failure in one is recorded
// without skipping or rolling back the other.
package notify

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"safeguard/internal/config"
)

// ErrConfigMissing means contact or sender is unset; no network call is made.
var ErrConfigMissing = errors.New("notification configuration missing")

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Outcome records the terminal result of one channel.
type Outcome struct {
	Status Status `json:"status"`
	ID     string `json:"id,omitempty"`     // provider message/call identifier
	Detail string `json:"detail,omitempty"` // failure detail
}

// Result is the per-channel outcome record for one alert attempt.
type Result struct {
	SMS  Outcome `json:"sms"`
	Call Outcome `json:"call"`
}

const (
	smsTemplate  = "URGENT: An accident may have been detected involving your contact. Reason: %s. Please check on them immediately."
	callTemplate = "Hello. This is an automated alert from SafeGuard. An accident may have been detected. Reason: %s. Please check on your contact immediately."
)

// restAPI is the slice of the Twilio client the gateway uses.
// *openapi.ApiService satisfies it.
type restAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
}

type Gateway struct {
	api restAPI
}

// New builds a gateway over the Twilio REST API.
func New(cfg config.TwilioConfig) *Gateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Gateway{api: client.Api}
}

// NewWithAPI builds a gateway over a caller-supplied API, used by tests.
func NewWithAPI(api restAPI) *Gateway {
	return &Gateway{api: api}
}

// Alert sends the SMS and places the voice call. Missing contact or sender
// fails fast before any network attempt; both outcomes then carry the detail.
func (g *Gateway) Alert(contact, sender, reason string) (Result, error) {
	contact = strings.TrimSpace(contact)
	sender = strings.TrimSpace(sender)
	if contact == "" || sender == "" {
		missing := Outcome{Status: StatusFailed, Detail: ErrConfigMissing.Error()}
		return Result{SMS: missing, Call: missing}, ErrConfigMissing
	}
	if !config.ValidNumber(contact) || !config.ValidNumber(sender) {
		bad := Outcome{Status: StatusFailed, Detail: "number is not E.164"}
		return Result{SMS: bad, Call: bad}, ErrConfigMissing
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Manual emergency activation."
	}

	res := Result{SMS: Outcome{Status: StatusPending}, Call: Outcome{Status: StatusPending}}
	res.SMS = g.sendSMS(contact, sender, fmt.Sprintf(smsTemplate, reason))
	res.Call = g.makeCall(contact, sender, fmt.Sprintf(callTemplate, reason))
	return res, nil
}

func (g *Gateway) sendSMS(to, from, body string) Outcome {
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(body)

	msg, err := g.api.CreateMessage(params)
	if err != nil {
		return Outcome{Status: StatusFailed, Detail: err.Error()}
	}
	out := Outcome{Status: StatusSent}
	if msg != nil && msg.Sid != nil {
		out.ID = *msg.Sid
	}
	return out
}

func (g *Gateway) makeCall(to, from, message string) Outcome {
	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetTwiml(sayTwiml(message))

	call, err := g.api.CreateCall(params)
	if err != nil {
		return Outcome{Status: StatusFailed, Detail: err.Error()}
	}
	out := Outcome{Status: StatusSent}
	if call != nil && call.Sid != nil {
		out.ID = *call.Sid
	}
	return out
}

func sayTwiml(message string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(message))
	return "<Response><Say>" + buf.String() + "</Say></Response>"
}
