// Package engine implements the FSM Engine (C7): config loading (see
// config.go), the cooperative event loop, transition resolution
// (wildcard and timed forms), per-state action execution, and the
// context-propagation pipeline that feeds current-job data into action
// templates. Grounded on
// _examples/spencerandtheteagues-apex-build-platform/backend/internal/agents/core/state_machine.go's
// Transition/validTransitions table shape, generalized from a fixed
// enum to YAML-loaded strings, and on
// original_source/src/statemachine_engine/core/engine.py's main loop
// (adaptive sleep, routine-event log suppression, job-context
// propagation counter).
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"statemachine-engine/internal/actions"
	"statemachine-engine/internal/interpolate"
	"statemachine-engine/internal/ipc"
	"statemachine-engine/internal/logging"
	"statemachine-engine/internal/metrics"
	"statemachine-engine/internal/store"
)

// routineEvents self-loop without telemetry/log spam (spec §4.7
// "Routine events that intentionally self-loop").
var routineEvents = map[string]bool{
	"no_events": true,
	"no_jobs":   true,
	"wake_up":   true,
}

const (
	idleSleep        = 500 * time.Millisecond
	activeSleep      = 50 * time.Millisecond
	idleThreshold    = 5 * time.Second
	controlPollWait  = 100 * time.Millisecond
	logEveryN        = 10
	propagationEveryN = 100
)

// Engine runs one FSM process: one goroutine, one mutable Context,
// synchronous action execution (spec §9 Design Notes: "one engine, one
// task... do not introduce intra-engine parallelism").
type Engine struct {
	cfg          *Config
	machineName  string
	socketPrefix string

	ctx     *Context
	store   *store.Store
	control *ipc.ControlSocket
	telemetry *ipc.TelemetryEmitter
	limiter *logging.Limiter

	mu           sync.Mutex
	currentState string
	running      bool
	lastActivity time.Time
	sleepCount   int
	propagations int

	timers      map[string][]chan struct{} // state -> cancel channels for its outgoing timers
	timerEvents chan string
}

// Options configures a new Engine.
type Options struct {
	Config          *Config
	MachineName     string // overrides Config.Metadata.machine_name if non-empty
	SocketPrefix    string
	Store           *store.Store
	InitialContext  map[string]interface{}
}

// New constructs an Engine ready to Run. Binds its control socket
// immediately (spec §4.6: stale file removed, non-blocking bind).
func New(opts Options) (*Engine, error) {
	machineName := opts.MachineName
	if machineName == "" {
		machineName = opts.Config.MachineName()
	}
	if machineName == "" {
		return nil, fmt.Errorf("machine name is required (set metadata.machine_name or --machine-name)")
	}

	controlPath := ipc.DefaultControlPath(opts.SocketPrefix, machineName)
	control, err := ipc.Bind(controlPath)
	if err != nil {
		return nil, fmt.Errorf("bind control socket: %w", err)
	}

	initial := opts.InitialContext
	if initial == nil {
		initial = map[string]interface{}{}
	}
	initial["machine_name"] = machineName

	e := &Engine{
		cfg:          opts.Config,
		machineName:  machineName,
		socketPrefix: opts.SocketPrefix,
		ctx:          NewContext(initial),
		store:        opts.Store,
		control:      control,
		telemetry:    ipc.NewTelemetryEmitter(ipc.DefaultTelemetryPath(opts.SocketPrefix)),
		limiter:      logging.NewLimiter(),
		currentState: opts.Config.InitialState,
		running:      true,
		lastActivity: time.Now(),
		timers:       make(map[string][]chan struct{}),
		timerEvents:  make(chan string, 16),
	}

	actions.Init(opts.Store, opts.SocketPrefix)
	return e, nil
}

// CurrentState returns the engine's current FSM state.
func (e *Engine) CurrentState() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentState
}

// Stop requests a clean shutdown; the loop exits after its current
// iteration (spec §5 Cancellation: "is_running is a cooperative flag").
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

func (e *Engine) isRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run executes the cooperative loop until the FSM reaches the terminal
// "stopped" state or Stop is called. Closes and unlinks the control
// socket on exit (spec §4.6 Cleanup).
func (e *Engine) Run(ctx context.Context) error {
	defer e.control.Close()
	defer e.telemetry.Close()

	zap.L().Info("state machine starting",
		zap.String("machine", e.machineName),
		zap.String("initial_state", e.currentState))

	if err := e.store.MachineStates.Upsert(e.machineName, e.currentState, os.Getpid(), nil); err != nil {
		zap.L().Warn("machine state upsert on startup failed", zap.Error(err))
	}

	e.dispatch("start")
	e.runStateActions(ctx)

	for e.isRunning() {
		select {
		case tEvent := <-e.timerEvents:
			e.dispatch(tEvent)
		default:
		}

		record, err := e.control.Poll(controlPollWait)
		if err != nil {
			zap.L().Warn("control socket poll error", zap.Error(err))
		}
		if record != nil {
			e.handleControlRecord(record)
		}

		if e.CurrentState() == "stopped" {
			zap.L().Info("state machine reached terminal state", zap.String("machine", e.machineName))
			break
		}

		e.runStateActions(ctx)

		if e.CurrentState() == "stopped" {
			break
		}

		time.Sleep(e.adaptiveInterval())
	}

	return nil
}

// handleControlRecord applies one decoded control-socket datagram (spec
// §4.6 steps 3-5): stores it at context.event_data, emits a telemetry
// receipt, then dispatches its event type.
func (e *Engine) handleControlRecord(record map[string]interface{}) {
	e.ctx.Set("event_data", record)
	e.emitTelemetry("event_received", record)

	eventType, _ := record["type"].(string)
	if eventType == "" {
		return
	}
	e.dispatch(eventType)
	if !routineEvents[eventType] {
		e.touchActivity()
	}
}

// adaptiveInterval returns 500ms when idle (in a waiting state with no
// recent non-idle activity) or 50ms when active (spec §4.7).
func (e *Engine) adaptiveInterval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	idle := e.currentState == "waiting" && time.Since(e.lastActivity) > idleThreshold
	if idle {
		return idleSleep
	}
	return activeSleep
}

func (e *Engine) touchActivity() {
	e.mu.Lock()
	e.lastActivity = time.Now()
	e.mu.Unlock()
}

// resolveTransition scans the transition table in document order and
// returns the first match where (from == current OR from == "*") AND
// event matches (spec P4: first-match-wins, no specific-over-wildcard
// preference).
func (e *Engine) resolveTransition(from, event string) (string, bool) {
	for _, t := range e.cfg.Transitions {
		if (t.From == from || t.From == "*") && t.Event == event {
			return t.To, true
		}
	}
	return "", false
}

// dispatch resolves event against the transition table from the
// current state and, on a match, moves the engine there: cancels the
// previous state's timers, starts the new state's timers, upserts
// machine_state, and emits telemetry (unless this is a suppressed idle
// self-loop). A missing transition is legal and logged at debug level,
// not an error (spec §4.7 "Missing transitions are legal").
func (e *Engine) dispatch(event string) string {
	metrics.Get().EventsDispatchedTotal.WithLabelValues(e.machineName, event).Inc()

	from := e.CurrentState()
	to, found := e.resolveTransition(from, event)
	if !found {
		if e.limiter.Allow("no-transition:"+from+":"+event, logEveryN) {
			zap.L().Debug("no transition for event, staying in state",
				zap.String("machine", e.machineName), zap.String("state", from), zap.String("event", event))
		}
		return from
	}

	idleSelfLoop := from == to && routineEvents[event]

	e.cancelTimers(from)
	e.mu.Lock()
	e.currentState = to
	e.mu.Unlock()

	metrics.Get().TransitionsTotal.WithLabelValues(e.machineName, from, to).Inc()

	if !idleSelfLoop {
		key := from + "--" + event + "-->" + to
		if e.limiter.Allow(key, logEveryN) {
			zap.L().Info("transition", zap.String("machine", e.machineName),
				zap.String("from", from), zap.String("event", event), zap.String("to", to))
		}
		e.emitStateChange(from, to, event)
		if err := e.store.MachineStates.Upsert(e.machineName, to, os.Getpid(), nil); err != nil {
			zap.L().Warn("machine state upsert failed", zap.Error(err))
		}
		e.touchActivity()
	}

	e.startTimers(to)
	return to
}

// emitStateChange sends a state_change telemetry record through the
// socket (C5), falling back to the Store's realtime_events table on
// send failure (spec §4.5 / §4.7 "Telemetry on state change").
func (e *Engine) emitStateChange(from, to, event string) {
	payload := map[string]interface{}{
		"from_state":    from,
		"to_state":      to,
		"event_trigger": event,
		"timestamp":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	e.emitTelemetry("state_change", payload)

	if err := e.store.PipelineResults.Append(nil, e.machineName, to, event); err != nil {
		zap.L().Warn("pipeline result append failed", zap.Error(err))
	}
}

func (e *Engine) emitTelemetry(eventType string, payload interface{}) {
	if e.telemetry.Emit(e.machineName, eventType, payload) {
		metrics.Get().RealtimeEventsEmitted.WithLabelValues("socket").Inc()
		return
	}
	blob, _ := payload.(map[string]interface{})
	if _, ok := e.store.RealtimeEvents.Log(e.machineName, eventType, blob); ok {
		metrics.Get().RealtimeEventsEmitted.WithLabelValues("store_fallback").Inc()
		return
	}
	metrics.Get().RealtimeEventsDropped.Inc()
}

// runStateActions executes every action configured for the current
// state in order, re-resolving which action list is "current" whenever
// an action's returned event causes a transition (spec §4.7 step 4:
// "follow-up actions belong to whichever state the engine is in after
// each hop").
func (e *Engine) runStateActions(ctx context.Context) {
	guard := 0
	state := e.CurrentState()
	list := e.cfg.Actions[state]
	i := 0
	for i < len(list) {
		guard++
		if guard > 1000 {
			zap.L().Warn("action execution guard tripped, likely a transition loop", zap.String("machine", e.machineName))
			return
		}

		event := e.runOneAction(ctx, list[i])
		e.propagateJobContext()

		if event != "" {
			newState := e.dispatch(event)
			if newState != state {
				state = newState
				list = e.cfg.Actions[state]
				i = 0
				continue
			}
		}
		i++
	}
}

// runOneAction interpolates one action's config against a context
// snapshot (spec §4.2 interpolateConfig, applied once per invocation)
// and executes it. log/sleep are handled inline as engine intrinsics
// (spec §4.7 step 2); everything else goes through the action registry.
func (e *Engine) runOneAction(ctx context.Context, raw ActionConfig) string {
	snapshot := e.ctx.Snapshot()
	interpolated, _ := interpolate.Config(map[string]interface{}(raw), snapshot).(map[string]interface{})
	actionType := actions.Alias(raw.Type())

	metrics.Get().ActionsExecutedTotal.WithLabelValues(e.machineName, actionType).Inc()

	switch actionType {
	case "log":
		return e.runLogIntrinsic(interpolated)
	case "sleep":
		return e.runSleepIntrinsic(interpolated)
	}

	factory, ok := actions.Get(actionType)
	if !ok {
		e.recordActionError(actionType, fmt.Sprintf("unknown action type %q", actionType))
		return "error"
	}

	action, err := factory(interpolated)
	if err != nil {
		e.recordActionError(actionType, err.Error())
		return "error"
	}

	event, err := action.Execute(ctx, e.ctx)
	if err != nil {
		e.recordActionError(actionType, err.Error())
		return "error"
	}
	return event
}

func (e *Engine) recordActionError(actionType, message string) {
	zap.L().Error("action error", zap.String("machine", e.machineName), zap.String("action", actionType), zap.String("error", message))
	e.ctx.Set("last_error", message)
	e.ctx.Set("last_error_action", actionType)
	e.emitTelemetry("error", map[string]interface{}{
		"action_type": actionType,
		"error":       message,
	})
	metrics.Get().ActionErrorsTotal.WithLabelValues(e.machineName, actionType).Inc()
}

// runLogIntrinsic writes a structured record to the realtime-events
// stream (spec §4.8 "log"). Always emits the configured/default success
// event ("continue", matching the Python LogAction's default).
func (e *Engine) runLogIntrinsic(cfg map[string]interface{}) string {
	message, _ := cfg["message"].(string)
	level, _ := cfg["level"].(string)
	if level == "" {
		level = "info"
	}

	payload := map[string]interface{}{
		"message": message,
		"level":   level,
		"machine": e.machineName,
	}
	e.emitTelemetry("log", payload)

	logFn := zap.L().Info
	switch level {
	case "error":
		logFn = zap.L().Error
	case "success":
		logFn = zap.L().Info
	}
	logFn("fsm log action", zap.String("machine", e.machineName), zap.String("message", message))

	return stringOrDefault(cfg, "success", "continue")
}

// runSleepIntrinsic suspends for the configured number of seconds, then
// dispatches wake_up (spec §4.7 step 2 "sleep"). This blocks the single
// engine goroutine for the duration, which is correct here since there
// is no other work to interleave during an intentional pause (the
// control socket is still drained on the next loop iteration
// immediately after).
func (e *Engine) runSleepIntrinsic(cfg map[string]interface{}) string {
	seconds := floatField(cfg, "seconds", 1)
	e.sleepCount++
	if e.sleepCount == 1 || seconds > 10 || e.sleepCount%10 == 0 {
		zap.L().Info("sleep action", zap.String("machine", e.machineName), zap.Float64("seconds", seconds), zap.Int("cycle", e.sleepCount))
	}
	time.Sleep(time.Duration(seconds * float64(time.Second)))
	return "wake_up"
}

// propagateJobContext lifts current_job's well-known fields and every
// key of current_job.data to the top-level context so the next action
// can template {id} or {input_file_path} directly (spec §4.7 "Context
// propagation", P5). Rate-limits its own diagnostic log after the first
// propagation, matching the Python engine's propagation_count counter.
func (e *Engine) propagateJobContext() {
	raw, ok := e.ctx.Get("current_job")
	if !ok {
		return
	}
	job, ok := raw.(map[string]interface{})
	if !ok {
		return
	}

	for _, key := range []string{"id", "source_job_id", "job_id", "job_type"} {
		if v, present := job[key]; present && v != nil {
			e.ctx.Set(key, v)
		}
	}

	var dataKeys []string
	if data, ok := job["data"].(map[string]interface{}); ok {
		for k, v := range data {
			if v == nil {
				continue
			}
			e.ctx.Set(k, v)
			dataKeys = append(dataKeys, k)
		}
	}

	e.propagations++
	if e.propagations == 1 {
		zap.L().Info("job context propagation started", zap.String("machine", e.machineName), zap.Strings("keys", dataKeys))
	} else if e.propagations%propagationEveryN == 0 {
		zap.L().Warn("job context propagated repeatedly", zap.String("machine", e.machineName), zap.Int("count", e.propagations))
	}
}

// startTimers starts one background timer per outgoing timed transition
// from state (spec §4.7 "Timed transitions"). Each timer sends its
// timeout(...) event string into e.timerEvents after its duration
// elapses, where the main loop dispatches it like any other event —
// this keeps the single-goroutine-owns-context invariant intact even
// though timers race concurrently (spec §9 Design Notes: "timers run
// concurrently with the state's action list").
func (e *Engine) startTimers(state string) {
	for _, t := range e.cfg.Transitions {
		if t.From != state && t.From != "*" {
			continue
		}
		seconds, ok := ParseTimeoutEvent(t.Event)
		if !ok {
			continue
		}
		cancel := make(chan struct{})
		e.mu.Lock()
		e.timers[state] = append(e.timers[state], cancel)
		e.mu.Unlock()

		event := t.Event
		go func() {
			timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
			defer timer.Stop()
			select {
			case <-timer.C:
				select {
				case e.timerEvents <- event:
				default:
				}
			case <-cancel:
			}
		}()
	}
}

// cancelTimers cancels every outstanding timer task belonging to state
// (spec P8: "all pending timer tasks belonging to A are cancelled
// before any action of B runs").
func (e *Engine) cancelTimers(state string) {
	e.mu.Lock()
	cancels := e.timers[state]
	delete(e.timers, state)
	e.mu.Unlock()

	for _, c := range cancels {
		close(c)
	}
}

func stringOrDefault(cfg map[string]interface{}, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

func floatField(cfg map[string]interface{}, key string, def float64) float64 {
	switch v := cfg[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
