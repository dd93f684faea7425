package tools

import (
	"context"
	"encoding/json"
)

// MessageSender submits outbound messages.
type MessageSender interface {
	CreateOutbound(ctx context.Context, msg Outbound) (*OutboundResult, error)
}

// Outbound is one message to deliver. Audio media goes in VoiceSpeechURL;
// with a prepend it holds [prepend, media] instead of a single url.
type Outbound struct {
	ToAddr         string
	Content        string
	VoiceSpeechURL []string
}

func (o Outbound) IsAudio() bool { return len(o.VoiceSpeechURL) > 0 }

func (o Outbound) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"to_addr": o.ToAddr,
		"content": o.Content,
	}
	switch len(o.VoiceSpeechURL) {
	case 0:
	case 1:
		body["metadata"] = map[string]any{"voice_speech_url": o.VoiceSpeechURL[0]}
	default:
		body["metadata"] = map[string]any{"voice_speech_url": o.VoiceSpeechURL}
	}
	return json.Marshal(body)
}

type OutboundResult struct {
	ID     string `json:"id"`
	ToAddr string `json:"to_addr"`
}

type MessageSenderClient struct {
	*Client
}

func NewMessageSenderClient(c *Client) *MessageSenderClient {
	return &MessageSenderClient{Client: c}
}

func (c *MessageSenderClient) CreateOutbound(ctx context.Context, msg Outbound) (*OutboundResult, error) {
	var out OutboundResult
	if err := c.post(ctx, "outbound/", msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
