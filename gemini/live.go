package gemini

import (
	"context"
	"errors"
	"io"
	"net"

	"google.golang.org/genai"

	"github.com/stanley-cafeteria/stanley-chat/chat"
)

// liveInputMIME is the PCM encoding the live API expects for microphone
// frames.
const liveInputMIME = "audio/pcm;rate=16000"

// OpenLiveSession connects a duplex voice channel to the live model with
// input and output transcription enabled. Server messages are decoded
// into chat.LiveServerEvent and delivered through h until the session
// ends; error and close both terminate delivery.
func (p *Provider) OpenLiveSession(ctx context.Context, h chat.LiveHandlers) (chat.LiveChannel, error) {
	session, err := p.client.Live.Connect(ctx, p.cfg.LiveModel, &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: liveVoice},
			},
		},
		SystemInstruction: systemContent(liveSystemInstruction),
	})
	if err != nil {
		return nil, wrapErr("connecting live session", err)
	}

	if h.OnOpen != nil {
		h.OnOpen()
	}
	go p.receiveLoop(session, h)

	return &liveChannel{session: session}, nil
}

// receiveLoop decodes server messages until the session terminates.
func (p *Provider) receiveLoop(session *genai.Session, h chat.LiveHandlers) {
	for {
		msg, err := session.Receive()
		if err != nil {
			if isLiveClosed(err) {
				if h.OnClose != nil {
					h.OnClose()
				}
				return
			}
			if h.OnError != nil {
				h.OnError(wrapErr("receiving live message", err))
			}
			return
		}

		ev, ok := eventFromMessage(msg)
		if ok && h.OnEvent != nil {
			h.OnEvent(ev)
		}
	}
}

// eventFromMessage flattens a live server message into the event shape
// the controller consumes. Messages without server content (setup acks
// and the like) are skipped.
func eventFromMessage(msg *genai.LiveServerMessage) (chat.LiveServerEvent, bool) {
	if msg == nil || msg.ServerContent == nil {
		return chat.LiveServerEvent{}, false
	}
	sc := msg.ServerContent

	var ev chat.LiveServerEvent
	if sc.InputTranscription != nil {
		ev.InputTranscript = sc.InputTranscription.Text
	}
	if sc.OutputTranscription != nil {
		ev.OutputTranscript = sc.OutputTranscription.Text
	}
	ev.TurnComplete = sc.TurnComplete

	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				ev.Audio = part.InlineData.Data
				break
			}
		}
	}
	return ev, true
}

func isLiveClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled)
}

// liveChannel adapts the genai live session to chat.LiveChannel.
type liveChannel struct {
	session *genai.Session
}

func (c *liveChannel) SendAudioFrame(pcm []byte) error {
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{MIMEType: liveInputMIME, Data: pcm},
	})
}

func (c *liveChannel) Close() error {
	return c.session.Close()
}
