package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	msgParams  *openapi.CreateMessageParams
	callParams *openapi.CreateCallParams
	msgErr     error
	callErr    error
	msgCalls   int
	callCalls  int
}

func (f *fakeAPI) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.msgCalls++
	f.msgParams = params
	if f.msgErr != nil {
		return nil, f.msgErr
	}
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func (f *fakeAPI) CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error) {
	f.callCalls++
	f.callParams = params
	if f.callErr != nil {
		return nil, f.callErr
	}
	sid := "CA456"
	return &openapi.ApiV2010Call{Sid: &sid}, nil
}

func TestAlertBothChannels(t *testing.T) {
	api := &fakeAPI{}
	g := NewWithAPI(api)

	res, err := g.Alert("+15551234567", "+15557654321", "damaged vehicle, debris on road")
	require.NoError(t, err)
	require.Equal(t, StatusSent, res.SMS.Status)
	require.Equal(t, "SM123", res.SMS.ID)
	require.Equal(t, StatusSent, res.Call.Status)
	require.Equal(t, "CA456", res.Call.ID)
	require.Equal(t, 1, api.msgCalls)
	require.Equal(t, 1, api.callCalls)

	require.Contains(t, *api.msgParams.Body, "damaged vehicle, debris on road")
	require.Contains(t, *api.msgParams.Body, "URGENT")
	require.Equal(t, "+15551234567", *api.msgParams.To)
	require.Equal(t, "+15557654321", *api.msgParams.From)
	require.Contains(t, *api.callParams.Twiml, "<Response><Say>")
	require.Contains(t, *api.callParams.Twiml, "damaged vehicle, debris on road")
}

func TestAlertSMSFailureDoesNotSkipCall(t *testing.T) {
	api := &fakeAPI{msgErr: errors.New("unreachable carrier")}
	g := NewWithAPI(api)

	res, err := g.Alert("+15551234567", "+15557654321", "smoke visible")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, res.SMS.Status)
	require.Contains(t, res.SMS.Detail, "unreachable carrier")
	require.Equal(t, StatusSent, res.Call.Status)
	require.Equal(t, 1, api.callCalls)
}

func TestAlertCallFailureKeepsSMSOutcome(t *testing.T) {
	api := &fakeAPI{callErr: errors.New("no voice route")}
	g := NewWithAPI(api)

	res, err := g.Alert("+15551234567", "+15557654321", "rollover")
	require.NoError(t, err)
	require.Equal(t, StatusSent, res.SMS.Status)
	require.Equal(t, StatusFailed, res.Call.Status)
	require.Contains(t, res.Call.Detail, "no voice route")
}

func TestAlertConfigMissing(t *testing.T) {
	api := &fakeAPI{}
	g := NewWithAPI(api)

	res, err := g.Alert("", "+15557654321", "anything")
	require.ErrorIs(t, err, ErrConfigMissing)
	require.Equal(t, StatusFailed, res.SMS.Status)
	require.Equal(t, StatusFailed, res.Call.Status)
	require.Zero(t, api.msgCalls)
	require.Zero(t, api.callCalls)
}

func TestAlertRejectsNonE164(t *testing.T) {
	api := &fakeAPI{}
	g := NewWithAPI(api)

	_, err := g.Alert("555-1234", "+15557654321", "anything")
	require.ErrorIs(t, err, ErrConfigMissing)
	require.Zero(t, api.msgCalls)
}

func TestTwimlEscaping(t *testing.T) {
	s := sayTwiml(`collision <severe> & "fire"`)
	require.True(t, strings.HasPrefix(s, "<Response><Say>"))
	require.NotContains(t, s, "<severe>")
	require.Contains(t, s, "&amp;")
}
