// Package analysis wraps the vision model behind a uniform verdict contract.
// Frame and sensor samples are normalized into one request shape; the model's
// answer is schema-checked before it reaches the orchestrator.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"safeguard/internal/llmclient"
)

var (
	// ErrUnavailable means the provider could not be reached or answered with
	// a transport-level failure.
	ErrUnavailable = errors.New("analysis provider unavailable")
	// ErrMalformed means the provider answered, but not with a response that
	// conforms to the verdict schema.
	ErrMalformed = errors.New("analysis response malformed")
)

// Verdict is the provider's structured answer to "is this an accident".
type Verdict struct {
	IsAccident bool    `json:"isAccident"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// LatLng is an optional sensor location fix.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// FrameSample is one captured video frame.
type FrameSample struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// SensorSample is one accelerometer/gyroscope reading with an optional fix.
type SensorSample struct {
	Accel    [3]float64 `json:"accel"`
	Gyro     [3]float64 `json:"gyro"`
	Location *LatLng    `json:"location,omitempty"`
}

// Sample is either a FrameSample or a SensorSample.
type Sample interface {
	isSample()
}

func (FrameSample) isSample()  {}
func (SensorSample) isSample() {}

const framePrompt = `You are an expert in analyzing images to detect car accidents.

You will receive a photo. Your task is to determine whether a car accident has occurred based on the visual evidence in the photo.

Look for signs of a crash, such as damaged vehicles, debris on the road, emergency vehicles, or smoke.

Output a boolean value "isAccident" indicating whether an accident occurred, a confidence level "confidence" (0-1), and a "reason" for your determination based on what you see.

You MUST output a valid JSON object with exactly those three fields. Do not include any text outside of the JSON object.`

const sensorPrompt = `You are an expert in analyzing vehicle motion data to detect car accidents.

You will receive accelerometer and gyroscope readings (and possibly a location fix) captured from a vehicle, as JSON. Sudden large spikes in acceleration or rotation suggest a collision or rollover.

Output a boolean value "isAccident" indicating whether an accident occurred, a confidence level "confidence" (0-1), and a "reason" for your determination based on the readings.

You MUST output a valid JSON object with exactly those three fields. Do not include any text outside of the JSON object.`

// Gateway submits samples to the model and validates its verdicts.
type Gateway struct {
	cli llmclient.Client
}

func New(cli llmclient.Client) *Gateway {
	return &Gateway{cli: cli}
}

// Analyze submits one sample and returns the provider's verdict. It never
// retries; the caller decides whether to resample.
func (g *Gateway) Analyze(ctx context.Context, sample Sample) (Verdict, error) {
	var (
		raw json.RawMessage
		err error
	)
	switch s := sample.(type) {
	case FrameSample:
		mime := s.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		raw, err = g.cli.GenerateJSON(ctx, framePrompt, []llmclient.Part{llmclient.BlobPart(mime, s.Data)})
	case SensorSample:
		payload, mErr := json.Marshal(s)
		if mErr != nil {
			return Verdict{}, fmt.Errorf("%w: %v", ErrMalformed, mErr)
		}
		raw, err = g.cli.GenerateJSON(ctx, sensorPrompt, []llmclient.Part{llmclient.TextPart(string(payload))})
	default:
		return Verdict{}, fmt.Errorf("%w: unknown sample type %T", ErrMalformed, sample)
	}
	if err != nil {
		var perm *llmclient.PermanentError
		if errors.Is(err, llmclient.ErrInvalidJSON) || errors.As(err, &perm) {
			return Verdict{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return parseVerdict(raw)
}

// parseVerdict enforces the verdict schema. A missing boolean is the classic
// malformed case: json.Unmarshal into *bool leaves nil when absent.
func parseVerdict(raw json.RawMessage) (Verdict, error) {
	var probe struct {
		IsAccident *bool    `json:"isAccident"`
		Confidence *float64 `json:"confidence"`
		Reason     *string  `json:"reason"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if probe.IsAccident == nil || probe.Confidence == nil || probe.Reason == nil {
		return Verdict{}, fmt.Errorf("%w: missing verdict field", ErrMalformed)
	}
	v := Verdict{
		IsAccident: *probe.IsAccident,
		Confidence: clamp01(*probe.Confidence),
		Reason:     *probe.Reason,
	}
	if v.IsAccident && v.Reason == "" {
		return Verdict{}, fmt.Errorf("%w: accident verdict without reason", ErrMalformed)
	}
	return v, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
