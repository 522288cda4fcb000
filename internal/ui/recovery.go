package ui

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// RecoveryHandler restarts the UI after it crashes
type RecoveryHandler struct {
	logger       *zap.Logger
	restartDelay time.Duration
	maxRestarts  int
	restartCount int
	mu           sync.Mutex
	program      *tea.Program
	changed      chan struct{} // closed whenever program changes
	createUI     func() (tea.Model, []tea.ProgramOption)
}

// NewRecoveryHandler creates a new recovery handler
func NewRecoveryHandler(logger *zap.Logger, createUI func() (tea.Model, []tea.ProgramOption)) *RecoveryHandler {
	return &RecoveryHandler{
		logger:       logger.Named("ui_recovery"),
		restartDelay: 2 * time.Second,
		maxRestarts:  5,
		changed:      make(chan struct{}),
		createUI:     createUI,
	}
}

// setProgram must be called with rh.mu held.
func (rh *RecoveryHandler) setProgram(p *tea.Program) {
	rh.program = p
	close(rh.changed)
	rh.changed = make(chan struct{})
}

// Forward delivers messages from updates to the running program until ctx is
// done. A restarted program first receives the latest message again, so a
// message taken while the UI was down is not lost. When updates is closed the
// program is told the monitor stopped.
func (rh *RecoveryHandler) Forward(ctx context.Context, updates <-chan tea.Msg) {
	var (
		last   tea.Msg
		target *tea.Program
	)
	for {
		rh.mu.Lock()
		program, changed := rh.program, rh.changed
		rh.mu.Unlock()

		if program != nil && program != target {
			target = program
			if last != nil {
				program.Send(last)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-changed:
		case msg, ok := <-updates:
			if !ok {
				msg = updatesClosedMsg{}
				updates = nil
			}
			last = msg
			if program != nil {
				program.Send(msg)
			}
		}
	}
}

// RunWithRecovery runs the UI until it exits normally, ctx is done, or it
// crashed more than maxRestarts times.
func (rh *RecoveryHandler) RunWithRecovery(ctx context.Context) error {
	for {
		err := rh.runUI()
		if err == nil || ctx.Err() != nil {
			return nil
		}

		rh.mu.Lock()
		rh.restartCount++
		count := rh.restartCount
		rh.mu.Unlock()

		if count > rh.maxRestarts {
			return fmt.Errorf("UI crashed too many times (%d), giving up: %w", rh.maxRestarts, err)
		}

		rh.logger.Error("UI crashed, will restart",
			zap.Error(err),
			zap.Int("restart_count", count),
			zap.Duration("delay", rh.restartDelay))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(rh.restartDelay):
		}
	}
}

func (rh *RecoveryHandler) runUI() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("UI panic: %v", r)
			rh.logger.Error("UI panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
		}
	}()

	model, opts := rh.createUI()
	program := tea.NewProgram(model, opts...)
	rh.mu.Lock()
	rh.setProgram(program)
	rh.mu.Unlock()
	defer func() {
		rh.mu.Lock()
		if rh.program == program {
			rh.setProgram(nil)
		}
		rh.mu.Unlock()
	}()

	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrInterrupted) {
			return nil
		}
		return fmt.Errorf("UI error: %w", err)
	}
	return nil
}

// Stop gracefully stops the UI
func (rh *RecoveryHandler) Stop() {
	rh.mu.Lock()
	defer rh.mu.Unlock()

	if rh.program != nil {
		rh.program.Quit()
		rh.setProgram(nil)
	}
}

// GetRestartCount returns the number of restarts
func (rh *RecoveryHandler) GetRestartCount() int {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	return rh.restartCount
}

// SafeUIWrapper wraps UI operations with panic recovery
type SafeUIWrapper struct {
	model  tea.Model
	logger *zap.Logger
}

// NewSafeUIWrapper creates a new safe UI wrapper
func NewSafeUIWrapper(model tea.Model, logger *zap.Logger) *SafeUIWrapper {
	return &SafeUIWrapper{
		model:  model,
		logger: logger,
	}
}

// Init wraps the Init method with panic recovery
func (sw *SafeUIWrapper) Init() (cmd tea.Cmd) {
	defer sw.recoverFromPanic("Init", &cmd)
	return sw.model.Init()
}

// Update wraps the Update method with panic recovery. On panic the previous
// model is kept.
func (sw *SafeUIWrapper) Update(msg tea.Msg) (model tea.Model, cmd tea.Cmd) {
	model = sw
	defer sw.recoverFromPanic("Update", &cmd)
	next, cmd := sw.model.Update(msg)
	sw.model = next
	return sw, cmd
}

// View wraps the View method with panic recovery
func (sw *SafeUIWrapper) View() (view string) {
	defer func() {
		if r := recover(); r != nil {
			sw.logger.Error("View panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			view = "UI Error: View crashed. Press q to exit."
		}
	}()
	return sw.model.View()
}

func (sw *SafeUIWrapper) recoverFromPanic(method string, cmd *tea.Cmd) {
	if r := recover(); r != nil {
		sw.logger.Error("UI method panic recovered",
			zap.String("method", method),
			zap.Any("panic", r),
			zap.String("stack", string(debug.Stack())))
		*cmd = nil
	}
}
