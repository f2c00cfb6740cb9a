package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/multichat/pkg/display"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/helpers"
	"github.com/go-go-golems/multichat/pkg/inference"
	"github.com/go-go-golems/multichat/pkg/inference/session"
	"github.com/go-go-golems/multichat/pkg/steps/ai"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/go-go-golems/multichat/pkg/steps/ai/types"
	"github.com/go-go-golems/multichat/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type ChatOptions struct {
	// LogEvents writes every streaming event to the logger at debug level.
	LogEvents bool
}

// RunChat runs the interactive chat until the operator quits.
func RunChat(ctx context.Context, s *settings.Settings, o ChatOptions) error {
	router, err := events.NewEventRouter(events.WithLogger(helpers.NewWatermill(log.Logger)))
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()

	programSink := ui.NewProgramSink()
	factory := ai.NewStandardEngineFactory(s)
	registry, err := factory.NewRegistry(programSink,
		session.WithEventSinks(inference.NewWatermillSink(router.Publisher, "chat")))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	options := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithMouseCellMotion(),
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		options = append(options, tea.WithAltScreen())
	} else {
		options = append(options, tea.WithOutput(os.Stderr))
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		tty, err := ui.OpenTTY()
		if err != nil {
			return errors.Wrap(err, "stdin is not a terminal and no tty could be opened")
		}
		defer func() {
			_ = tty.Close()
		}()
		options = append(options, tea.WithInput(tty))
	}

	p := tea.NewProgram(ui.InitialModel(ctx, registry), options...)
	programSink.SetProgram(p)

	router.AddHandler("ui", "chat", ui.StatusForwardFunc(p))
	if o.LogEvents {
		router.AddHandler("log", "chat", router.LogEvents)
	}

	eg := errgroup.Group{}
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		select {
		case <-router.Running():
		case <-ctx.Done():
			return nil
		}

		_, err := p.Run()
		registry.CancelAll()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	return eg.Wait()
}

type AskOptions struct {
	// Provider overrides the provider from the settings.
	Provider types.ProviderID
	// Markdown renders the finished answer instead of streaming raw text.
	Markdown bool
	Width    int
	// PrintEvents dumps every streaming event and display command as JSON
	// to EventsOutput. PrintMetadata keeps the event metadata in the dump.
	PrintEvents   bool
	PrintMetadata bool
	EventsOutput  io.Writer
	// LogEvents writes every streaming event to the logger at debug level.
	LogEvents bool
	// Stats prints model, token usage and duration to EventsOutput.
	Stats bool
}

// RunAsk sends one prompt to one provider and writes the answer to w.
func RunAsk(ctx context.Context, s *settings.Settings, w io.Writer, prompt string, o AskOptions) error {
	provider := o.Provider
	if provider == "" {
		provider = s.Provider
	}
	if provider == types.ProviderImage {
		return errors.New("use the image command for image generation")
	}
	if o.EventsOutput == nil {
		o.EventsOutput = os.Stderr
	}

	terminal, err := newTerminal(w, o.Markdown, o.Width)
	if err != nil {
		return err
	}
	var sink display.Sink = display.StreamOnly{Sink: terminal}
	if o.Markdown {
		sink = display.AnswerOnly{Sink: terminal}
	}

	stats := &statsCollector{}
	setup := func(router *events.EventRouter) {
		if o.PrintEvents {
			router.AddHandler("raw", "ask", router.DumpRawEvents(o.EventsOutput))
		}
		if o.Stats {
			router.AddHandler("stats", "ask", events.NewChatDispatchHandler(stats))
		}
	}
	routerOptions := []events.EventRouterOption{events.WithVerbose(o.PrintMetadata)}

	return withRouter(ctx, "ask", setup, o.PrintEvents || o.Stats, routerOptions, func(ctx context.Context, sinks []events.EventSink) error {
		if o.PrintEvents && len(sinks) > 0 {
			sink = display.Multi{sink, display.NewEventSink(sinks[0], "", provider.String())}
		}
		if o.LogEvents {
			sinks = append(sinks, inference.NewLogSink(log.Logger))
		}

		chat, err := ai.NewStandardEngineFactory(s).NewChat(provider,
			session.WithDisplay(sink),
			session.WithEventSinks(sinks...))
		if err != nil {
			return err
		}

		h, err := chat.SubmitPrompt(ctx, prompt)
		if err != nil {
			return err
		}
		_, err = h.Wait()
		terminal.Finish()
		if o.Stats {
			stats.Print(o.EventsOutput)
		}
		return err
	})
}

type ImageOptions struct {
	// PrintRecord writes the full image record as YAML instead of the reference.
	PrintRecord bool
}

// RunImage generates one image and writes its reference to w.
func RunImage(ctx context.Context, s *settings.Settings, w io.Writer, prompt string, o ImageOptions) error {
	return withRouter(ctx, "image", func(router *events.EventRouter) {
		router.AddHandler("printer", "image", events.StepPrinterFunc("", w))
	}, o.PrintRecord, nil, func(ctx context.Context, sinks []events.EventSink) error {
		chat, err := ai.NewStandardEngineFactory(s).NewChat(types.ProviderImage, session.WithEventSinks(sinks...))
		if err != nil {
			return err
		}
		h, err := chat.SubmitPrompt(ctx, prompt)
		if err != nil {
			return err
		}
		if _, err := h.Wait(); err != nil {
			return err
		}
		if o.PrintRecord {
			return nil
		}
		images, ok := chat.(*session.ImageSession)
		if !ok {
			return errors.New("image provider did not return an image session")
		}
		records := images.Records()
		if len(records) == 0 {
			return session.ErrNoImage
		}
		_, err = fmt.Fprintln(w, records[len(records)-1].Ref)
		return err
	})
}

func newTerminal(w io.Writer, markdown bool, width int) (*display.TerminalSink, error) {
	if !markdown {
		return display.NewTerminalSink(w)
	}
	if width <= 0 {
		width = 100
	}
	return display.NewTerminalSink(w, display.WithMarkdown(width))
}

// withRouter runs f, with an event router running next to it when enabled.
// The sinks passed to f publish to topic.
func withRouter(
	ctx context.Context,
	topic string,
	setup func(router *events.EventRouter),
	enabled bool,
	options []events.EventRouterOption,
	f func(ctx context.Context, sinks []events.EventSink) error,
) error {
	if !enabled {
		return f(ctx, nil)
	}

	router, err := events.NewEventRouter(options...)
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()
	setup(router)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg := errgroup.Group{}
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		select {
		case <-router.Running():
		case <-ctx.Done():
			return ctx.Err()
		}
		return f(ctx, []events.EventSink{inference.NewWatermillSink(router.Publisher, topic)})
	})
	return eg.Wait()
}

// statsCollector remembers the metadata of the last terminal event.
type statsCollector struct {
	mu   sync.Mutex
	meta *events.EventMetadata
	what string
}

var _ events.ChatEventHandler = (*statsCollector)(nil)

func (s *statsCollector) set(m events.EventMetadata, what string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = &m
	s.what = what
	return nil
}

func (s *statsCollector) HandlePartialCompletion(ctx context.Context, e *events.EventPartialCompletion) error {
	return nil
}

func (s *statsCollector) HandleFinal(ctx context.Context, e *events.EventFinal) error {
	return s.set(e.Metadata(), "done")
}

func (s *statsCollector) HandleError(ctx context.Context, e *events.EventError) error {
	return s.set(e.Metadata(), "failed")
}

func (s *statsCollector) HandleInterrupt(ctx context.Context, e *events.EventInterrupt) error {
	return s.set(e.Metadata(), "interrupted")
}

func (s *statsCollector) HandleImageGenerated(ctx context.Context, e *events.EventImageGenerated) error {
	return s.set(e.Metadata(), "image")
}

func (s *statsCollector) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		return ""
	}
	parts := []string{}
	if s.meta.Provider != "" {
		parts = append(parts, s.meta.Provider)
	}
	if s.meta.Model != "" {
		parts = append(parts, s.meta.Model)
	}
	parts = append(parts, s.what)
	if s.meta.Usage != nil {
		parts = append(parts, fmt.Sprintf("input_tokens=%d output_tokens=%d", s.meta.Usage.InputTokens, s.meta.Usage.OutputTokens))
	}
	if s.meta.DurationMs != nil {
		parts = append(parts, fmt.Sprintf("duration=%dms", *s.meta.DurationMs))
	}
	return strings.Join(parts, " ")
}

func (s *statsCollector) Print(w io.Writer) {
	if str := s.String(); str != "" {
		if _, err := fmt.Fprintln(w, str); err != nil {
			log.Debug().Err(err).Msg("could not print stats")
		}
	}
}
