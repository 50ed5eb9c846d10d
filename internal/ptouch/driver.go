package ptouch

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"labelpress/internal/raster"
	"labelpress/internal/transport"
)

// State of a Printer. The protocol is strictly synchronous, so at any
// moment a printer is in exactly one of these.
type State int

const (
	Disconnected State = iota
	Connected
	Printing
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Printing:
		return "printing"
	case Errored:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	// statusAttempts bounds the status request/read loop during connect.
	statusAttempts = 10
	// completionAttempts bounds the post-print poll loop. With the poll
	// interval this allows a few minutes for a long label to feed out.
	completionAttempts = 300
	pollInterval       = 100 * time.Millisecond
)

// PrintOptions shape one page of a job.
type PrintOptions struct {
	// MarginDots is the feed margin sent with the margin amount command.
	MarginDots uint16
	// LastPage feeds and cuts after printing; pages of a chained job
	// other than the final one leave the tape in place.
	LastPage bool
	// Chained suppresses the cut between pages.
	Chained bool
	// Raster tunes binarization for PrintImage.
	Raster raster.Options
}

// Printer drives one label printer over one transport. It exclusively owns
// the transport for its lifetime; callers needing concurrency must
// serialize access externally.
type Printer struct {
	tr     transport.Transport
	log    *slog.Logger
	state  State
	status *Status

	// sleep is swapped out by tests so completion polling doesn't wait.
	sleep func(time.Duration)
}

func NewPrinter(tr transport.Transport, log *slog.Logger) *Printer {
	return &Printer{
		tr:    tr,
		log:   log.With("src", "ptouch"),
		sleep: time.Sleep,
	}
}

func (p *Printer) State() State { return p.state }

// Status returns the last status block read from the device, or nil before
// the first successful UpdateStatus.
func (p *Printer) Status() *Status { return p.status }

// Connect acquires the transport and reads an initial status block.
func (p *Printer) Connect() error {
	if err := p.tr.Connect(); err != nil {
		return fmt.Errorf("Couldn't connect to printer:\n%w", err)
	}
	if _, err := p.UpdateStatus(); err != nil {
		return err
	}
	p.log.Info("connected to printer",
		"media_width_mm", p.status.MediaWidthMM,
		"media_type", p.status.MediaType.String())
	return nil
}

// UpdateStatus resets the printer's command parser and polls for a status
// block, bounded by statusAttempts request/read rounds.
func (p *Printer) UpdateStatus() (*Status, error) {
	if _, err := p.tr.Write(invalidate()); err != nil {
		return nil, fmt.Errorf("Couldn't reset printer:\n%w", err)
	}
	if _, err := p.tr.Write(initialize()); err != nil {
		return nil, fmt.Errorf("Couldn't initialize printer:\n%w", err)
	}

	buf := make([]byte, 128)
	for range statusAttempts {
		if _, err := p.tr.Write(statusInformationRequest()); err != nil {
			return nil, fmt.Errorf("Couldn't request status:\n%w", err)
		}
		n, err := p.tr.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("Couldn't read status:\n%w", err)
		}
		if n < StatusLength {
			continue
		}
		status, err := DecodeStatus(buf[:n])
		if err != nil {
			return nil, err
		}
		p.status = status
		p.state = Connected
		return status, nil
	}
	return nil, fmt.Errorf("no status after %d attempts: %w", statusAttempts, ErrProtocolTimeout)
}

// PrintRaster transmits prepared raster data and waits for the printer to
// confirm completion. data must be whole 16-byte raster lines.
func (p *Printer) PrintRaster(data []byte, opts PrintOptions) error {
	if p.state != Connected {
		return fmt.Errorf("print in state %q: %w", p.state, ErrInvalidState)
	}
	p.state = Printing

	cmds := [][]byte{
		enterDynamicCommandMode(),
		enableStatusNotification(),
		printInformation(data, byte(p.status.MediaWidthMM)),
		setMode(AutoCut),
		setAdvancedMode(opts.Chained),
		marginAmount(opts.MarginDots),
		setCompressionMode(),
	}
	cmds = append(cmds, rasterCommands(data)...)
	if opts.LastPage {
		cmds = append(cmds, printWithFeeding())
	} else {
		cmds = append(cmds, printWithoutFeeding())
	}
	for _, cmd := range cmds {
		if _, err := p.tr.Write(cmd); err != nil {
			p.state = Errored
			return fmt.Errorf("Couldn't send print data:\n%w", err)
		}
	}
	p.log.Debug("sent print job", "lines", len(data)/raster.LineBytes, "last_page", opts.LastPage)

	return p.awaitCompletion()
}

// awaitCompletion polls for a terminal status, bounded by
// completionAttempts reads with a short sleep after each empty one.
func (p *Printer) awaitCompletion() error {
	buf := make([]byte, 128)
	for range completionAttempts {
		n, _ := p.tr.Read(buf)
		if n < StatusLength {
			p.sleep(pollInterval)
			continue
		}
		status, err := DecodeStatus(buf[:n])
		if err != nil {
			return err
		}

		switch status.Type {
		case StatusPrintingCompleted:
			// Absorb the trailing phase-change notification if the
			// printer sends one; its absence is fine.
			_, _ = p.tr.Read(buf)
			p.state = Connected
			p.log.Info("print completed")
			return nil
		case StatusErrorOccurred:
			p.state = Errored
			hwErr := newHardwareError(status.ErrorInformation1, status.ErrorInformation2)
			p.log.Error("printer reported hardware error", "err", hwErr)
			return hwErr
		case StatusTurnedOff:
			p.state = Errored
			return ErrTurnedOff
		}
		// Notifications and phase changes roll by while the job runs.
	}
	p.state = Errored
	return fmt.Errorf("did not confirm print completion: %w", ErrProtocolTimeout)
}

// PrintImage refreshes the printer status, prepares img for the loaded
// media and prints it.
func (p *Printer) PrintImage(img image.Image, opts PrintOptions) error {
	if p.state != Connected {
		return fmt.Errorf("print in state %q: %w", p.state, ErrInvalidState)
	}
	status, err := p.UpdateStatus()
	if err != nil {
		return err
	}

	packed, err := raster.Prepare(img, status.MediaWidthMM, opts.Raster)
	if err != nil {
		return fmt.Errorf("Couldn't prepare image for %d mm tape:\n%w", status.MediaWidthMM, err)
	}
	if packed.Width()+int(opts.MarginDots) < raster.MinTapeDots {
		p.log.Warn("label shorter than minimum tape length",
			"columns", packed.Width(),
			"margin_dots", opts.MarginDots,
			"minimum", raster.MinTapeDots)
	}
	return p.PrintRaster(packed.Data(), opts)
}

// Close releases the transport; safe from any state.
func (p *Printer) Close() error {
	p.state = Disconnected
	return p.tr.Close()
}
