// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package zi

import (
	"log"

	"github.com/pkg/errors"
)

const (
	numSignalInputs  = 2
	numSignalOutputs = 2
	numAuxOutputs    = 4
)

// profile carries the per-model facts the shared lock-in core needs.
type profile struct {
	model          string
	numDemods      int
	numOscillators int
	// ampNodes maps each signal output to the mixer channel that carries
	// its amplitude, i.e. the n of amplitudes/n and enables/n.
	ampNodes       map[int]int
	oscFreqMax     float64        // Hz, 0 means unbounded
	signalInputs   map[string]int // demod adcselect menu
	inputDiffs     map[string]int // signal input diff menu
	auxOutputs     map[string]int // aux output outputselect menu
	outputRanges   []float64      // fixed legal output ranges, nil when imp50-dependent
	offsetLimit    float64        // output offset bound in volts
	hasOutputImp50 bool           // sigout imp50/autorange nodes exist
}

// lockin is the core shared by the UHFLI and HF2LI drivers. All channel
// numbers in the API are 1-based; node indices are 0-based.
type lockin struct {
	sess           Session
	device         string
	prof           profile
	debug          bool
	multifrequency bool
	ampdef         [numSignalOutputs]AmplitudeUnit
}

// Option configures a lock-in driver during construction.
type Option func(*lockin)

// WithDebug enables printing of commands and responses to the log.
func WithDebug() Option {
	return func(li *lockin) { li.debug = true }
}

// WithMultifrequency declares that the device has the MF option installed,
// which unlocks one oscillator per demodulator instead of two in total.
func WithMultifrequency() Option {
	return func(li *lockin) { li.multifrequency = true }
}

func newLockin(sess Session, device string, prof profile, opts ...Option) (*lockin, error) {
	if sess == nil {
		return nil, errors.New("nil session")
	}
	if device == "" {
		return nil, errors.New("no device ID given")
	}
	li := &lockin{
		sess:   sess,
		device: device,
		prof:   prof,
	}
	for out := range li.ampdef {
		li.ampdef[out] = Vpk
	}
	for _, opt := range opts {
		opt(li)
	}
	if !li.multifrequency {
		li.prof.numOscillators = 2
	}
	return li, nil
}

func (li *lockin) path(module string, number int, setting string) string {
	return nodePath(li.device, module, number, setting)
}

func (li *lockin) logf(format string, a ...any) {
	if li.debug {
		log.Printf(format, a...)
	}
}

// Device returns the LabOne device ID the driver is bound to.
func (li *lockin) Device() string {
	return li.device
}

// Close releases the underlying session.
func (li *lockin) Close() error {
	return li.sess.Close()
}

func (li *lockin) checkOscillator(osc int) error {
	if osc < 1 || osc > li.prof.numOscillators {
		return errors.Errorf("invalid oscillator number (got %d, must be between 1 and %d)",
			osc, li.prof.numOscillators)
	}
	return nil
}

func (li *lockin) checkDemod(d int) error {
	if d < 1 || d > li.prof.numDemods {
		return errors.Errorf("invalid demodulator number (got %d, must be between 1 and %d)",
			d, li.prof.numDemods)
	}
	return nil
}

func (li *lockin) checkInput(in int) error {
	if in < 1 || in > numSignalInputs {
		return errors.Errorf("invalid signal input number (got %d, must be between 1 and %d)",
			in, numSignalInputs)
	}
	return nil
}

func (li *lockin) checkOutput(out int) error {
	if out < 1 || out > numSignalOutputs {
		return errors.Errorf("invalid signal output number (got %d, must be between 1 and %d)",
			out, numSignalOutputs)
	}
	return nil
}

func (li *lockin) checkAuxOutput(ch int) error {
	if ch < 1 || ch > numAuxOutputs {
		return errors.Errorf("invalid aux output number (got %d, must be between 1 and %d)",
			ch, numAuxOutputs)
	}
	return nil
}

func boolToInt(on bool) int {
	if on {
		return 1
	}
	return 0
}

// menuName reverse-looks-up the name for a device code in a value menu.
func menuName(menu map[string]int, code int) (string, bool) {
	for name, c := range menu {
		if c == code {
			return name, true
		}
	}
	return "", false
}

// SetOscillatorFrequency sets the frequency of the given oscillator in Hz.
func (li *lockin) SetOscillatorFrequency(osc int, freq float64) error {
	if err := li.checkOscillator(osc); err != nil {
		return err
	}
	if freq < 0 || (li.prof.oscFreqMax > 0 && freq > li.prof.oscFreqMax) {
		return errors.Errorf("invalid oscillator frequency (got %g Hz, must be between 0 and %g)",
			freq, li.prof.oscFreqMax)
	}
	return li.sess.SetDouble(li.path("oscs", osc, "freq"), freq)
}

// OscillatorFrequency returns the frequency of the given oscillator in Hz.
func (li *lockin) OscillatorFrequency(osc int) (float64, error) {
	if err := li.checkOscillator(osc); err != nil {
		return 0, err
	}
	return li.sess.GetDouble(li.path("oscs", osc, "freq"))
}

// SetDemodOrder sets the filter order (1 to 8) of the given demodulator.
func (li *lockin) SetDemodOrder(d, order int) error {
	if err := li.checkDemod(d); err != nil {
		return err
	}
	if order < 1 || order > 8 {
		return errors.Errorf("invalid filter order (got %d, must be between 1 and 8)", order)
	}
	return li.sess.SetInt(li.path("demods", d, "order"), order)
}

// DemodOrder returns the filter order of the given demodulator.
func (li *lockin) DemodOrder(d int) (int, error) {
	if err := li.checkDemod(d); err != nil {
		return 0, err
	}
	return li.sess.GetInt(li.path("demods", d, "order"))
}

// SetDemodHarmonic sets the reference frequency multiplication factor
// (1 to 1023) of the given demodulator.
func (li *lockin) SetDemodHarmonic(d, harmonic int) error {
	if err := li.checkDemod(d); err != nil {
		return err
	}
	if harmonic < 1 || harmonic > 1023 {
		return errors.Errorf("invalid harmonic (got %d, must be between 1 and 1023)", harmonic)
	}
	return li.sess.SetInt(li.path("demods", d, "harmonic"), harmonic)
}

// DemodHarmonic returns the reference frequency multiplication factor of
// the given demodulator.
func (li *lockin) DemodHarmonic(d int) (int, error) {
	if err := li.checkDemod(d); err != nil {
		return 0, err
	}
	return li.sess.GetInt(li.path("demods", d, "harmonic"))
}

// SetDemodTimeConstant sets the filter time constant in seconds.
func (li *lockin) SetDemodTimeConstant(d int, tc float64) error {
	if err := li.checkDemod(d); err != nil {
		return err
	}
	return li.sess.SetDouble(li.path("demods", d, "timeconstant"), tc)
}

// DemodTimeConstant returns the filter time constant in seconds.
func (li *lockin) DemodTimeConstant(d int) (float64, error) {
	if err := li.checkDemod(d); err != nil {
		return 0, err
	}
	return li.sess.GetDouble(li.path("demods", d, "timeconstant"))
}

// SetDemodRate sets the streaming sample rate in Sa/s. The device rounds
// the value to the nearest supported rate, so read it back if it matters.
func (li *lockin) SetDemodRate(d int, rate float64) error {
	if err := li.checkDemod(d); err != nil {
		return err
	}
	return li.sess.SetDouble(li.path("demods", d, "rate"), rate)
}

// DemodRate returns the streaming sample rate in Sa/s.
func (li *lockin) DemodRate(d int) (float64, error) {
	if err := li.checkDemod(d); err != nil {
		return 0, err
	}
	return li.sess.GetDouble(li.path("demods", d, "rate"))
}

// SetDemodPhaseShift sets the demodulation phase shift in degrees.
func (li *lockin) SetDemodPhaseShift(d int, deg float64) error {
	if err := li.checkDemod(d); err != nil {
		return err
	}
	if deg < -180 || deg > 180 {
		return errors.Errorf("invalid phase shift (got %g, must be between -180 and 180)", deg)
	}
	return li.sess.SetDouble(li.path("demods", d, "phaseshift"), deg)
}

// DemodPhaseShift returns the demodulation phase shift in degrees.
func (li *lockin) DemodPhaseShift(d int) (float64, error) {
	if err := li.checkDemod(d); err != nil {
		return 0, err
	}
	return li.sess.GetDouble(li.path("demods", d, "phaseshift"))
}

// SetDemodSignalInput routes the named input signal into the demodulator.
// The legal names depend on the model.
func (li *lockin) SetDemodSignalInput(d int, input string) error {
	if err := li.checkDemod(d); err != nil {
		return err
	}
	code, ok := li.prof.signalInputs[input]
	if !ok {
		return errors.Errorf("invalid signal input %q for the %s", input, li.prof.model)
	}
	return li.sess.SetInt(li.path("demods", d, "adcselect"), code)
}

// DemodSignalInput returns the name of the input signal routed into the
// demodulator.
func (li *lockin) DemodSignalInput(d int) (string, error) {
	if err := li.checkDemod(d); err != nil {
		return "", err
	}
	code, err := li.sess.GetInt(li.path("demods", d, "adcselect"))
	if err != nil {
		return "", err
	}
	name, ok := menuName(li.prof.signalInputs, code)
	if !ok {
		return "", errors.Errorf("device reported unknown signal input code %d", code)
	}
	return name, nil
}

// SetDemodSinc switches the sinc filter of the given demodulator.
func (li *lockin) SetDemodSinc(d int, on bool) error {
	if err := li.checkDemod(d); err != nil {
		return err
	}
	return li.sess.SetInt(li.path("demods", d, "sinc"), boolToInt(on))
}

// DemodSinc reports whether the sinc filter is on.
func (li *lockin) DemodSinc(d int) (bool, error) {
	if err := li.checkDemod(d); err != nil {
		return false, err
	}
	v, err := li.sess.GetInt(li.path("demods", d, "sinc"))
	return v != 0, err
}

// SetDemodStreaming switches data streaming of the given demodulator.
func (li *lockin) SetDemodStreaming(d int, on bool) error {
	if err := li.checkDemod(d); err != nil {
		return err
	}
	return li.sess.SetInt(li.path("demods", d, "enable"), boolToInt(on))
}

// DemodStreaming reports whether data streaming is on.
func (li *lockin) DemodStreaming(d int) (bool, error) {
	if err := li.checkDemod(d); err != nil {
		return false, err
	}
	v, err := li.sess.GetInt(li.path("demods", d, "enable"))
	return v != 0, err
}

// setDemodTriggerCode writes a raw trigger code. The models wrap this with
// their own trigger vocabulary.
func (li *lockin) setDemodTriggerCode(d, code int) error {
	if err := li.checkDemod(d); err != nil {
		return err
	}
	return li.sess.SetInt(li.path("demods", d, "trigger"), code)
}

func (li *lockin) demodTriggerCode(d int) (int, error) {
	if err := li.checkDemod(d); err != nil {
		return 0, err
	}
	return li.sess.GetInt(li.path("demods", d, "trigger"))
}

// DemodSample reads one output sample of the given demodulator.
func (li *lockin) DemodSample(d int) (Sample, error) {
	if err := li.checkDemod(d); err != nil {
		return Sample{}, err
	}
	return li.sess.GetSample(li.path("demods", d, "sample"))
}

// DemodX returns the in-phase component of the demodulated signal in volts.
func (li *lockin) DemodX(d int) (float64, error) {
	s, err := li.DemodSample(d)
	return s.X, err
}

// DemodY returns the quadrature component of the demodulated signal in volts.
func (li *lockin) DemodY(d int) (float64, error) {
	s, err := li.DemodSample(d)
	return s.Y, err
}

// DemodR returns the demodulated amplitude in volts.
func (li *lockin) DemodR(d int) (float64, error) {
	s, err := li.DemodSample(d)
	if err != nil {
		return 0, err
	}
	return s.R(), nil
}

// DemodPhi returns the demodulated phase angle in degrees.
func (li *lockin) DemodPhi(d int) (float64, error) {
	s, err := li.DemodSample(d)
	if err != nil {
		return 0, err
	}
	return s.Phi(), nil
}

// SetInputRange sets the input range of the given signal input in volts.
func (li *lockin) SetInputRange(in int, rng float64) error {
	if err := li.checkInput(in); err != nil {
		return err
	}
	if rng < 0.0001 || rng > 2 {
		return errors.Errorf("invalid input range (got %g V, must be between 0.0001 and 2)", rng)
	}
	return li.sess.SetDouble(li.path("sigins", in, "range"), rng)
}

// InputRange returns the input range of the given signal input in volts.
func (li *lockin) InputRange(in int) (float64, error) {
	if err := li.checkInput(in); err != nil {
		return 0, err
	}
	return li.sess.GetDouble(li.path("sigins", in, "range"))
}

// SetInputAC switches AC coupling of the given signal input.
func (li *lockin) SetInputAC(in int, on bool) error {
	if err := li.checkInput(in); err != nil {
		return err
	}
	return li.sess.SetInt(li.path("sigins", in, "ac"), boolToInt(on))
}

// InputAC reports whether AC coupling is on.
func (li *lockin) InputAC(in int) (bool, error) {
	if err := li.checkInput(in); err != nil {
		return false, err
	}
	v, err := li.sess.GetInt(li.path("sigins", in, "ac"))
	return v != 0, err
}

// SetInputImpedance sets the input impedance in ohms, either 50 or 1000.
func (li *lockin) SetInputImpedance(in, ohms int) error {
	if err := li.checkInput(in); err != nil {
		return err
	}
	switch ohms {
	case 50:
		return li.sess.SetInt(li.path("sigins", in, "imp50"), 1)
	case 1000:
		return li.sess.SetInt(li.path("sigins", in, "imp50"), 0)
	}
	return errors.Errorf("invalid input impedance (got %d, must be 50 or 1000)", ohms)
}

// InputImpedance returns the input impedance in ohms.
func (li *lockin) InputImpedance(in int) (int, error) {
	if err := li.checkInput(in); err != nil {
		return 0, err
	}
	v, err := li.sess.GetInt(li.path("sigins", in, "imp50"))
	if err != nil {
		return 0, err
	}
	if v != 0 {
		return 50, nil
	}
	return 1000, nil
}

// SetInputDiff sets the differential mode of the given signal input. The
// legal modes depend on the model.
func (li *lockin) SetInputDiff(in int, mode string) error {
	if err := li.checkInput(in); err != nil {
		return err
	}
	code, ok := li.prof.inputDiffs[mode]
	if !ok {
		return errors.Errorf("invalid differential mode %q for the %s", mode, li.prof.model)
	}
	return li.sess.SetInt(li.path("sigins", in, "diff"), code)
}

// InputDiff returns the differential mode of the given signal input.
func (li *lockin) InputDiff(in int) (string, error) {
	if err := li.checkInput(in); err != nil {
		return "", err
	}
	code, err := li.sess.GetInt(li.path("sigins", in, "diff"))
	if err != nil {
		return "", err
	}
	name, ok := menuName(li.prof.inputDiffs, code)
	if !ok {
		return "", errors.Errorf("device reported unknown differential mode code %d", code)
	}
	return name, nil
}
