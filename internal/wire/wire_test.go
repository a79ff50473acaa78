package wire

import (
	"errors"
	"testing"
)

func TestContentValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Content
		wantErr error
	}{
		{"text", Content{Type: KindText, Text: "hi"}, nil},
		{"blank text", Content{Type: KindText, Text: "  \n"}, ErrEmptyContent},
		{"image", Content{Type: KindImage, Name: "a.png", Size: 3}, nil},
		{"file by url", Content{Type: KindFile, URL: "https://x/y.pdf"}, nil},
		{"empty file", Content{Type: KindFile}, ErrEmptyContent},
		{"text with attachment", Content{Type: KindText, Text: "hi", Name: "a.png"}, ErrMixedContent},
		{"image with caption", Content{Type: KindImage, Name: "a.png", Text: "hi"}, ErrMixedContent},
		{"unknown", Content{Type: "video", Name: "a.mp4"}, ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFrameRoundTrip(t *testing.T) {
	f, err := NewFrame(EventSendMessage, SendMessage{
		ReceiverID: "u2",
		Content:    Content{Type: KindText, Text: "hi"},
		TempID:     "local:ab:1",
	})
	if err != nil {
		t.Fatal(err)
	}
	f.ID = 7
	raw, err := f.Encode()
	if err != nil {
		t.Fatal(err)
	}
	got, err := ParseFrame(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got.Event != EventSendMessage || got.ID != 7 {
		t.Fatalf("frame = %s/%d, want %s/7", got.Event, got.ID, EventSendMessage)
	}
	var p SendMessage
	if err := got.Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.TempID != "local:ab:1" || p.Content.Text != "hi" {
		t.Errorf("payload = %+v", p)
	}
}

func TestParseFrameRejectsMissingEvent(t *testing.T) {
	if _, err := ParseFrame([]byte(`{"data":{}}`)); err == nil {
		t.Error("ParseFrame without event should fail")
	}
	if _, err := ParseFrame([]byte(`not json`)); err == nil {
		t.Error("ParseFrame with garbage should fail")
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	f := Frame{Event: EventUserOnline}
	var p UserPresence
	if err := f.Decode(&p); err == nil {
		t.Error("Decode with no data should fail")
	}
}

func TestNewMessageValidate(t *testing.T) {
	ok := NewMessage{ID: "s1", SenderID: "u2", Content: Content{Type: KindText, Text: "yo"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	noID := ok
	noID.ID = ""
	if err := noID.Validate(); !errors.Is(err, ErrMissingPayload) {
		t.Errorf("missing id: Validate() = %v, want ErrMissingPayload", err)
	}
	noSender := ok
	noSender.SenderID = ""
	if err := noSender.Validate(); !errors.Is(err, ErrMissingPayload) {
		t.Errorf("missing sender: Validate() = %v, want ErrMissingPayload", err)
	}
}
