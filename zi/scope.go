// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package zi

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrAcquisition marks a scope acquisition that kept failing (device error
// flag or timeout) until the retry budget was exhausted.
var ErrAcquisition = errors.New("scope acquisition failed")

const (
	scopeRetries      = 10
	scopePollInterval = 100 * time.Millisecond
)

// ScopeMode selects between the scope's time and frequency domain modes.
type ScopeMode string

// Scope modes. Acquisition through this driver supports time domain only.
const (
	TimeDomain    ScopeMode = "Time Domain"
	FreqDomainFFT ScopeMode = "Freq Domain FFT"
)

var scopeModes = map[string]int{
	string(TimeDomain):    1,
	string(FreqDomainFFT): 3,
}

// TriggerSlope selects which edge of the trigger signal arms the scope.
type TriggerSlope string

// Trigger slopes.
const (
	SlopeNone TriggerSlope = "None"
	SlopeRise TriggerSlope = "Rise"
	SlopeFall TriggerSlope = "Fall"
	SlopeBoth TriggerSlope = "Both"
)

var triggerSlopes = map[string]int{
	string(SlopeNone): 0,
	string(SlopeRise): 1,
	string(SlopeFall): 2,
	string(SlopeBoth): 3,
}

// HysteresisMode selects how the trigger hysteresis is specified.
type HysteresisMode string

// Hysteresis modes.
const (
	HystAbsolute HysteresisMode = "absolute"
	HystRelative HysteresisMode = "relative"
)

var hysteresisModes = map[string]int{
	string(HystAbsolute): 0,
	string(HystRelative): 1,
}

// HoldoffMode selects how the trigger holdoff is specified.
type HoldoffMode string

// Holdoff modes. Acquisition supports holdoff in seconds only.
const (
	HoldoffSeconds HoldoffMode = "s"
	HoldoffEvents  HoldoffMode = "events"
)

var holdoffModes = map[string]int{
	string(HoldoffSeconds): 0,
	string(HoldoffEvents):  1,
}

// GateSource selects the trigger input level that gates triggering.
type GateSource string

// Gate sources.
const (
	GateTrig3High GateSource = "Trigger In 3 High"
	GateTrig3Low  GateSource = "Trigger In 3 Low"
	GateTrig4High GateSource = "Trigger In 4 High"
	GateTrig4Low  GateSource = "Trigger In 4 Low"
)

var gateSources = map[string]int{
	string(GateTrig3High): 0,
	string(GateTrig3Low):  1,
	string(GateTrig4High): 2,
	string(GateTrig4Low):  3,
}

// samplingRates maps the scope's sampling rate menu to device codes. The
// 1.80 GHz base rate is divided by powers of two down to 27.5 kHz.
var samplingRates = map[string]int{
	"1.80 GHz": 0,
	"900 MHz":  1,
	"450 MHz":  2,
	"225 MHz":  3,
	"113 MHz":  4,
	"56.2 MHz": 5,
	"28.1 MHz": 6,
	"14.0 MHz": 7,
	"7.03 MHz": 8,
	"3.50 MHz": 9,
	"1.75 MHz": 10,
	"880 kHz":  11,
	"440 kHz":  12,
	"220 kHz":  13,
	"110 kHz":  14,
	"54.9 kHz": 15,
	"27.5 kHz": 16,
}

// scopeInputs maps scope input source names to LabOne select codes, as
// listed in the LabOne UI log. The demodulator entries are appended in
// init.
var scopeInputs = map[string]int{
	"Signal Input 1":  0,
	"Signal Input 2":  1,
	"Trig Input 1":    2,
	"Trig Input 2":    3,
	"Aux Output 1":    4,
	"Aux Output 2":    5,
	"Aux Output 3":    6,
	"Aux Output 4":    7,
	"Aux In 1 Ch 1":   8,
	"Aux In 1 Ch 2":   9,
	"Osc phi Demod 4": 10,
	"Osc phi Demod 8": 11,
	"AU Cartesian 1":  112,
	"AU Cartesian 2":  113,
	"AU Polar 1":      128,
	"AU Polar 2":      129,
}

func init() {
	for d := 1; d <= 8; d++ {
		scopeInputs[fmt.Sprintf("Demod %d X", d)] = 15 + d
		scopeInputs[fmt.Sprintf("Demod %d Y", d)] = 31 + d
		scopeInputs[fmt.Sprintf("Demod %d R", d)] = 47 + d
		scopeInputs[fmt.Sprintf("Demod %d Phase", d)] = 63 + d
	}
}

// ScopeTrace is the result of one scope acquisition. A channel that was
// not selected is nil; an enabled channel holds one row per segment.
type ScopeTrace struct {
	Times    []float64
	Channel1 [][]float64
	Channel2 [][]float64
}

// Scope drives the UHFLI scope through the LabOne scope streaming module.
// Settings go straight to the device; Prepare must run after the last
// setting change and before Acquire.
type Scope struct {
	sess     Session
	device   string
	mod      ScopeModule
	debug    bool
	prepared bool
	times    []float64
	actions  []func()

	retries      int
	pollInterval time.Duration
	now          func() time.Time
}

func newScope(sess Session, device string, debug bool) (*Scope, error) {
	mod, err := sess.ScopeModule()
	if err != nil {
		return nil, errors.Wrap(err, "instantiating scope module")
	}
	s := &Scope{
		sess:         sess,
		device:       device,
		mod:          mod,
		debug:        debug,
		retries:      scopeRetries,
		pollInterval: scopePollInterval,
		now:          time.Now,
	}
	if err := mod.Subscribe(s.devPath("wave")); err != nil {
		return nil, errors.Wrap(err, "subscribing to scope wave")
	}
	return s, nil
}

func (s *Scope) devPath(setting string) string {
	return nodePath(s.device, "scopes", 1, setting)
}

func (s *Scope) logf(format string, a ...any) {
	if s.debug {
		log.Printf(format, a...)
	}
}

// invalidate is called by every setter the trace shape or axis depends on.
func (s *Scope) invalidate() {
	s.prepared = false
}

// Run starts the scope, like the run button in the LabOne UI.
func (s *Scope) Run() error {
	return s.sess.SetInt(s.devPath("enable"), 1)
}

// Stop stops the scope.
func (s *Scope) Stop() error {
	return s.sess.SetInt(s.devPath("enable"), 0)
}

// Running reports whether the scope is running.
func (s *Scope) Running() (bool, error) {
	v, err := s.sess.GetInt(s.devPath("enable"))
	return v != 0, err
}

// SetMode sets the scope mode. Acquire supports TimeDomain only.
func (s *Scope) SetMode(mode ScopeMode) error {
	code, ok := scopeModes[string(mode)]
	if !ok {
		return errors.Errorf("invalid scope mode %q", mode)
	}
	s.invalidate()
	return s.mod.SetInt("mode", code)
}

// Mode returns the scope mode.
func (s *Scope) Mode() (ScopeMode, error) {
	code, err := s.mod.GetInt("mode")
	if err != nil {
		return "", err
	}
	name, ok := menuName(scopeModes, code)
	if !ok {
		return "", errors.Errorf("device reported unknown scope mode code %d", code)
	}
	return ScopeMode(name), nil
}

// SetChannels selects the recorded channels: 1 for channel 1, 2 for
// channel 2, 3 for both.
func (s *Scope) SetChannels(sel int) error {
	if sel < 1 || sel > 3 {
		return errors.Errorf("invalid channel selection (got %d, must be between 1 and 3)", sel)
	}
	s.invalidate()
	return s.sess.SetInt(s.devPath("channel"), sel)
}

// Channels returns the recorded channel selection.
func (s *Scope) Channels() (int, error) {
	return s.sess.GetInt(s.devPath("channel"))
}

// SetSamplingRate sets the sampling rate by menu name, e.g. "1.80 GHz".
// The trace length is kept and the duration rescales accordingly.
func (s *Scope) SetSamplingRate(rate string) error {
	code, ok := samplingRates[rate]
	if !ok {
		return errors.Errorf("invalid sampling rate %q", rate)
	}
	s.invalidate()
	return s.sess.SetInt(s.devPath("time"), code)
}

// SamplingRate returns the sampling rate menu name.
func (s *Scope) SamplingRate() (string, error) {
	code, err := s.sess.GetInt(s.devPath("time"))
	if err != nil {
		return "", err
	}
	name, ok := menuName(samplingRates, code)
	if !ok {
		return "", errors.Errorf("device reported unknown sampling rate code %d", code)
	}
	return name, nil
}

// parseRate turns a sampling rate menu name into Hz.
func parseRate(name string) (float64, error) {
	fields := strings.Fields(name)
	if len(fields) != 2 {
		return 0, errors.Errorf("malformed sampling rate %q", name)
	}
	number, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed sampling rate %q", name)
	}
	mult, ok := map[string]float64{"kHz": 1e3, "MHz": 1e6, "GHz": 1e9}[fields[1]]
	if !ok {
		return 0, errors.Errorf("malformed sampling rate %q", name)
	}
	return number * mult, nil
}

func (s *Scope) sampleRateHz() (float64, error) {
	name, err := s.SamplingRate()
	if err != nil {
		return 0, err
	}
	return parseRate(name)
}

// SetLength sets the trace length in points (4096 to 128 M). The duration
// follows from the length and the sampling rate.
func (s *Scope) SetLength(npts int) error {
	if npts < 4096 || npts > 128000000 {
		return errors.Errorf("invalid trace length (got %d, must be between 4096 and 128000000)", npts)
	}
	s.invalidate()
	return s.sess.SetInt(s.devPath("length"), npts)
}

// Length returns the trace length in points.
func (s *Scope) Length() (int, error) {
	return s.sess.GetInt(s.devPath("length"))
}

// SetDuration sets the trace duration in seconds by recomputing the trace
// length at the current sampling rate.
func (s *Scope) SetDuration(d float64) error {
	if d < 2.27e-6 || d > 4.66e3 {
		return errors.Errorf("invalid trace duration (got %g s, must be between 2.27e-6 and 4.66e3)", d)
	}
	sr, err := s.sampleRateHz()
	if err != nil {
		return err
	}
	s.invalidate()
	return s.sess.SetInt(s.devPath("length"), int(math.Round(d*sr)))
}

// Duration returns the trace duration in seconds, derived from the trace
// length and the sampling rate.
func (s *Scope) Duration() (float64, error) {
	npts, err := s.Length()
	if err != nil {
		return 0, err
	}
	sr, err := s.sampleRateHz()
	if err != nil {
		return 0, err
	}
	return float64(npts) / sr, nil
}

// SetChannelInput routes the named source into the given scope channel,
// e.g. "Signal Input 1" or "Demod 4 R".
func (s *Scope) SetChannelInput(ch int, input string) error {
	if ch < 1 || ch > 2 {
		return errors.Errorf("invalid scope channel (got %d, must be 1 or 2)", ch)
	}
	code, ok := scopeInputs[input]
	if !ok {
		return errors.Errorf("invalid scope input %q", input)
	}
	s.invalidate()
	return s.sess.SetInt(s.devPath(fmt.Sprintf("channels/%d/inputselect", ch-1)), code)
}

// ChannelInput returns the name of the source routed into the channel.
func (s *Scope) ChannelInput(ch int) (string, error) {
	if ch < 1 || ch > 2 {
		return "", errors.Errorf("invalid scope channel (got %d, must be 1 or 2)", ch)
	}
	code, err := s.sess.GetInt(s.devPath(fmt.Sprintf("channels/%d/inputselect", ch-1)))
	if err != nil {
		return "", err
	}
	name, ok := menuName(scopeInputs, code)
	if !ok {
		return "", errors.Errorf("device reported unknown scope input code %d", code)
	}
	return name, nil
}

// SetAverageWeight sets the number of traces folded into the exponential
// moving average.
func (s *Scope) SetAverageWeight(n int) error {
	if n < 1 {
		return errors.Errorf("invalid average weight (got %d, must be at least 1)", n)
	}
	s.invalidate()
	return s.mod.SetInt("averager/weight", n)
}

// AverageWeight returns the averager weight.
func (s *Scope) AverageWeight() (int, error) {
	return s.mod.GetInt("averager/weight")
}

// ResetAverager restarts the exponential moving average.
func (s *Scope) ResetAverager() error {
	return s.mod.SetInt("averager/restart", 1)
}

// SetTriggerEnable switches triggered readout on or off.
func (s *Scope) SetTriggerEnable(on bool) error {
	return s.sess.SetInt(s.devPath("trigenable"), boolToInt(on))
}

// TriggerEnable reports whether triggered readout is on.
func (s *Scope) TriggerEnable() (bool, error) {
	v, err := s.sess.GetInt(s.devPath("trigenable"))
	return v != 0, err
}

// SetTriggerSignal selects the trigger source from the scope input menu.
func (s *Scope) SetTriggerSignal(input string) error {
	code, ok := scopeInputs[input]
	if !ok {
		return errors.Errorf("invalid trigger signal %q", input)
	}
	return s.sess.SetInt(s.devPath("trigchannel"), code)
}

// TriggerSignal returns the name of the trigger source.
func (s *Scope) TriggerSignal() (string, error) {
	code, err := s.sess.GetInt(s.devPath("trigchannel"))
	if err != nil {
		return "", err
	}
	name, ok := menuName(scopeInputs, code)
	if !ok {
		return "", errors.Errorf("device reported unknown trigger signal code %d", code)
	}
	return name, nil
}

// SetTriggerSlope sets the trigger slope.
func (s *Scope) SetTriggerSlope(slope TriggerSlope) error {
	code, ok := triggerSlopes[string(slope)]
	if !ok {
		return errors.Errorf("invalid trigger slope %q", slope)
	}
	return s.sess.SetInt(s.devPath("trigslope"), code)
}

// TriggerSlope returns the trigger slope.
func (s *Scope) TriggerSlope() (TriggerSlope, error) {
	code, err := s.sess.GetInt(s.devPath("trigslope"))
	if err != nil {
		return "", err
	}
	name, ok := menuName(triggerSlopes, code)
	if !ok {
		return "", errors.Errorf("device reported unknown trigger slope code %d", code)
	}
	return TriggerSlope(name), nil
}

// SetTriggerLevel sets the trigger level in volts.
func (s *Scope) SetTriggerLevel(v float64) error {
	return s.sess.SetDouble(s.devPath("triglevel"), v)
}

// TriggerLevel returns the trigger level in volts.
func (s *Scope) TriggerLevel() (float64, error) {
	return s.sess.GetDouble(s.devPath("triglevel"))
}

// SetTriggerHystMode selects absolute or relative trigger hysteresis.
func (s *Scope) SetTriggerHystMode(mode HysteresisMode) error {
	code, ok := hysteresisModes[string(mode)]
	if !ok {
		return errors.Errorf("invalid hysteresis mode %q", mode)
	}
	return s.sess.SetInt(s.devPath("trighysteresis/mode"), code)
}

// TriggerHystMode returns the trigger hysteresis mode.
func (s *Scope) TriggerHystMode() (HysteresisMode, error) {
	code, err := s.sess.GetInt(s.devPath("trighysteresis/mode"))
	if err != nil {
		return "", err
	}
	name, ok := menuName(hysteresisModes, code)
	if !ok {
		return "", errors.Errorf("device reported unknown hysteresis mode code %d", code)
	}
	return HysteresisMode(name), nil
}

// SetTriggerHystAbsolute sets the absolute trigger hysteresis in volts
// (0 to 20).
func (s *Scope) SetTriggerHystAbsolute(v float64) error {
	if v < 0 || v > 20 {
		return errors.Errorf("invalid absolute hysteresis (got %g V, must be between 0 and 20)", v)
	}
	return s.sess.SetDouble(s.devPath("trighysteresis/absolute"), v)
}

// TriggerHystAbsolute returns the absolute trigger hysteresis in volts.
func (s *Scope) TriggerHystAbsolute() (float64, error) {
	return s.sess.GetDouble(s.devPath("trighysteresis/absolute"))
}

// SetTriggerHystRelative sets the relative trigger hysteresis in percent.
func (s *Scope) SetTriggerHystRelative(pct float64) error {
	if pct < 0 {
		return errors.Errorf("invalid relative hysteresis (got %g %%, must not be negative)", pct)
	}
	return s.sess.SetDouble(s.devPath("trighysteresis/relative"), pct)
}

// TriggerHystRelative returns the relative trigger hysteresis in percent.
func (s *Scope) TriggerHystRelative() (float64, error) {
	return s.sess.GetDouble(s.devPath("trighysteresis/relative"))
}

// SetTriggerGateSource selects the signal that gates triggering.
func (s *Scope) SetTriggerGateSource(src GateSource) error {
	code, ok := gateSources[string(src)]
	if !ok {
		return errors.Errorf("invalid gate source %q", src)
	}
	return s.sess.SetInt(s.devPath("triggate/inputselect"), code)
}

// TriggerGateSource returns the signal that gates triggering.
func (s *Scope) TriggerGateSource() (GateSource, error) {
	code, err := s.sess.GetInt(s.devPath("triggate/inputselect"))
	if err != nil {
		return "", err
	}
	name, ok := menuName(gateSources, code)
	if !ok {
		return "", errors.Errorf("device reported unknown gate source code %d", code)
	}
	return GateSource(name), nil
}

// SetTriggerGateEnable switches trigger gating on or off.
func (s *Scope) SetTriggerGateEnable(on bool) error {
	return s.sess.SetInt(s.devPath("triggate/enable"), boolToInt(on))
}

// TriggerGateEnable reports whether trigger gating is on.
func (s *Scope) TriggerGateEnable() (bool, error) {
	v, err := s.sess.GetInt(s.devPath("triggate/enable"))
	return v != 0, err
}

// SetTriggerHoldoffMode selects whether holdoff is given in seconds or in
// trigger events. Acquire supports seconds only.
func (s *Scope) SetTriggerHoldoffMode(mode HoldoffMode) error {
	code, ok := holdoffModes[string(mode)]
	if !ok {
		return errors.Errorf("invalid holdoff mode %q", mode)
	}
	return s.sess.SetInt(s.devPath("trigholdoffmode"), code)
}

// TriggerHoldoffMode returns the trigger holdoff mode.
func (s *Scope) TriggerHoldoffMode() (HoldoffMode, error) {
	code, err := s.sess.GetInt(s.devPath("trigholdoffmode"))
	if err != nil {
		return "", err
	}
	name, ok := menuName(holdoffModes, code)
	if !ok {
		return "", errors.Errorf("device reported unknown holdoff mode code %d", code)
	}
	return HoldoffMode(name), nil
}

// SetTriggerHoldoff sets the trigger holdoff in seconds (20 µs to 10 s)
// and forces the holdoff mode to seconds.
func (s *Scope) SetTriggerHoldoff(secs float64) error {
	if secs < 20e-6 || secs > 10 {
		return errors.Errorf("invalid trigger holdoff (got %g s, must be between 20e-6 and 10)", secs)
	}
	if err := s.SetTriggerHoldoffMode(HoldoffSeconds); err != nil {
		return err
	}
	s.invalidate()
	return s.sess.SetDouble(s.devPath("trigholdoff"), secs)
}

// TriggerHoldoff returns the trigger holdoff in seconds.
func (s *Scope) TriggerHoldoff() (float64, error) {
	return s.sess.GetDouble(s.devPath("trigholdoff"))
}

// SetTriggerReference sets the trigger reference position as a percentage
// of the trace (0 left edge, 100 right edge).
func (s *Scope) SetTriggerReference(pct float64) error {
	if pct < 0 || pct > 100 {
		return errors.Errorf("invalid trigger reference (got %g %%, must be between 0 and 100)", pct)
	}
	s.invalidate()
	return s.sess.SetDouble(s.devPath("trigreference"), pct)
}

// TriggerReference returns the trigger reference position in percent.
func (s *Scope) TriggerReference() (float64, error) {
	return s.sess.GetDouble(s.devPath("trigreference"))
}

// SetTriggerDelay sets the delay between trigger and trace start in
// seconds.
func (s *Scope) SetTriggerDelay(secs float64) error {
	s.invalidate()
	return s.sess.SetDouble(s.devPath("trigdelay"), secs)
}

// TriggerDelay returns the trigger delay in seconds.
func (s *Scope) TriggerDelay() (float64, error) {
	return s.sess.GetDouble(s.devPath("trigdelay"))
}

// SetSegments switches segmented recording on or off.
func (s *Scope) SetSegments(on bool) error {
	s.invalidate()
	return s.sess.SetInt(s.devPath("segments/enable"), boolToInt(on))
}

// Segments reports whether segmented recording is on.
func (s *Scope) Segments() (bool, error) {
	v, err := s.sess.GetInt(s.devPath("segments/enable"))
	return v != 0, err
}

// SetSegmentCount sets the number of segments per trace (1 to 32768).
func (s *Scope) SetSegmentCount(n int) error {
	if n < 1 || n > 32768 {
		return errors.Errorf("invalid segment count (got %d, must be between 1 and 32768)", n)
	}
	s.invalidate()
	return s.sess.SetInt(s.devPath("segments/count"), n)
}

// SegmentCount returns the number of segments per trace.
func (s *Scope) SegmentCount() (int, error) {
	return s.sess.GetInt(s.devPath("segments/count"))
}

// AddPostTriggerAction registers a callback run right after each
// acquisition attempt is armed, e.g. to fire an AWG that produces the
// signal under test.
func (s *Scope) AddPostTriggerAction(fn func()) {
	s.actions = append(s.actions, fn)
}

// Prepare pushes the pending setup to the device, computes the trace time
// axis, and marks the scope ready for Acquire. It must run again after any
// setting that changes the trace shape.
func (s *Scope) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	duration, err := s.Duration()
	if err != nil {
		return errors.Wrap(err, "reading trace duration")
	}
	ref, err := s.TriggerReference()
	if err != nil {
		return errors.Wrap(err, "reading trigger reference")
	}
	delay, err := s.TriggerDelay()
	if err != nil {
		return errors.Wrap(err, "reading trigger delay")
	}
	npts, err := s.Length()
	if err != nil {
		return errors.Wrap(err, "reading trace length")
	}

	start := ref*0.01*duration + delay
	s.times = make([]float64, npts)
	step := 0.0
	if npts > 1 {
		step = duration / float64(npts-1)
	}
	for i := range s.times {
		s.times[i] = start + float64(i)*step
	}

	if err := s.sess.Sync(); err != nil {
		return errors.Wrap(err, "syncing scope setup")
	}
	s.prepared = true
	return nil
}

// Acquire runs one scope acquisition and returns the recorded trace.
//
// Each attempt arms a single shot, clears the module history, starts the
// scope, and polls the module progress every 100 ms until it reaches 1,
// giving up past a coarse timeout derived from the expected measurement
// time. A timeout or a set module error flag consumes one of the 10
// attempts; exhausting the budget returns ErrAcquisition.
func (s *Scope) Acquire(ctx context.Context) (*ScopeTrace, error) {
	if !s.prepared {
		return nil, errors.New("scope not prepared; run Prepare before acquiring")
	}
	holdoffMode, err := s.TriggerHoldoffMode()
	if err != nil {
		return nil, errors.Wrap(err, "reading holdoff mode")
	}
	if holdoffMode == HoldoffEvents {
		return nil, errors.New("scope trigger holdoff in number of events not supported; specify holdoff in seconds")
	}
	if err := s.sess.Sync(); err != nil {
		return nil, errors.Wrap(err, "syncing before acquisition")
	}

	segs := 1
	segmented, err := s.Segments()
	if err != nil {
		return nil, errors.Wrap(err, "reading segment state")
	}
	if segmented {
		if segs, err = s.SegmentCount(); err != nil {
			return nil, errors.Wrap(err, "reading segment count")
		}
	}
	deadtime, err := s.TriggerHoldoff()
	if err != nil {
		return nil, errors.Wrap(err, "reading trigger holdoff")
	}
	duration, err := s.Duration()
	if err != nil {
		return nil, errors.Wrap(err, "reading trace duration")
	}
	npts, err := s.Length()
	if err != nil {
		return nil, errors.Wrap(err, "reading trace length")
	}
	sel, err := s.Channels()
	if err != nil {
		return nil, errors.Wrap(err, "reading channel selection")
	}

	// One second on top accounts for latencies and random delays.
	measTime := float64(segs)*(duration+deadtime) + 1

	for attempt := 1; attempt <= s.retries; attempt++ {
		rec, ok, err := s.acquireOnce(ctx, measTime)
		if err != nil {
			return nil, err
		}
		if !ok {
			s.logf("scope acquisition attempt %d failed, retrying", attempt)
			continue
		}
		trace := &ScopeTrace{Times: s.times}
		if sel&1 != 0 {
			if trace.Channel1, err = reshape(rec.Wave[0], segs, npts); err != nil {
				return nil, errors.Wrap(err, "scope channel 1")
			}
		}
		if sel&2 != 0 {
			if trace.Channel2, err = reshape(rec.Wave[1], segs, npts); err != nil {
				return nil, errors.Wrap(err, "scope channel 2")
			}
		}
		return trace, nil
	}
	return nil, errors.Wrap(ErrAcquisition, "maximum number of retries performed, no data returned")
}

// acquireOnce runs a single acquisition attempt. A false ok with a nil
// error means the attempt failed in a retryable way (module error flag or
// progress timeout).
func (s *Scope) acquireOnce(ctx context.Context, measTime float64) (rec ScopeRecord, ok bool, err error) {
	defer func() {
		if ferr := s.mod.Finish(); ferr != nil && err == nil {
			err = errors.Wrap(ferr, "finishing scope module")
		}
	}()

	// One shot per trigger. This must be re-armed every time the scope is
	// enabled.
	if err := s.sess.SetInt(s.devPath("single"), 1); err != nil {
		return ScopeRecord{}, false, err
	}
	if err := s.mod.SetInt("clearhistory", 1); err != nil {
		return ScopeRecord{}, false, err
	}
	if err := s.Run(); err != nil {
		return ScopeRecord{}, false, err
	}
	if err := s.sess.Sync(); err != nil {
		return ScopeRecord{}, false, err
	}
	s.logf("starting scope acquisition")
	if err := s.mod.Execute(); err != nil {
		return ScopeRecord{}, false, err
	}
	for _, fn := range s.actions {
		fn()
	}

	deadline := s.now().Add(time.Duration((20*measTime + 1) * float64(time.Second)))
	timedout := false
	for {
		p, err := s.mod.Progress()
		if err != nil {
			return ScopeRecord{}, false, err
		}
		if p >= 1 {
			break
		}
		s.logf("scope progress is %g", p)
		if s.now().After(deadline) {
			timedout = true
			break
		}
		select {
		case <-ctx.Done():
			return ScopeRecord{}, false, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}

	flag, err := s.mod.GetInt("error")
	if err != nil {
		return ScopeRecord{}, false, err
	}
	if err := s.Stop(); err != nil {
		return ScopeRecord{}, false, err
	}
	if timedout || flag != 0 {
		return ScopeRecord{}, false, nil
	}

	recs, err := s.mod.Read()
	if err != nil {
		return ScopeRecord{}, false, err
	}
	if len(recs) == 0 {
		return ScopeRecord{}, false, nil
	}
	rec = recs[len(recs)-1]
	if rec.Error {
		return ScopeRecord{}, false, nil
	}
	return rec, true, nil
}

func reshape(flat []float64, segs, npts int) ([][]float64, error) {
	if len(flat) != segs*npts {
		return nil, errors.Errorf("got %d samples, want %d segments of %d", len(flat), segs, npts)
	}
	rows := make([][]float64, segs)
	for i := range rows {
		rows[i] = flat[i*npts : (i+1)*npts]
	}
	return rows, nil
}
