package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

// StepPrinterFunc returns a watermill handler that prints a human readable
// transcript of the event stream to w.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p_ := e.(type) {
		case *EventError:
			_, err = fmt.Fprintf(w, "\n[error:%s] %s\n", p_.Kind, p_.ErrorString)
			if err != nil {
				return err
			}
			isFirst = true

		case *EventPartialCompletion:
			if isFirst && name != "" {
				isFirst = false
				_, err = fmt.Fprintf(w, "\n%s: \n", name)
				if err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(w, "%s", p_.Delta)
			if err != nil {
				return err
			}

		case *EventFinal:
			isFirst = true
			if !strings.HasSuffix(p_.Text, "\n") {
				_, err = fmt.Fprintf(w, "\n")
				if err != nil {
					return err
				}
			}

		case *EventInterrupt:
			isFirst = true
			_, err = fmt.Fprintf(w, "\n[interrupted]\n")
			if err != nil {
				return err
			}

		case *EventImageGenerated:
			v_, err := yaml.Marshal(p_.Image)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s\n", v_)
			if err != nil {
				return err
			}

		case *EventPartialCompletionStart, *EventRenderFull:
		}

		return nil
	}
}
