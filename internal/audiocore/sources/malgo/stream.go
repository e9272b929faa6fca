// Package malgo opens capture streams through miniaudio.
package malgo

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/voicecap/internal/audiocore"
	"github.com/tphakala/voicecap/internal/errors"
	"github.com/tphakala/voicecap/internal/logger"
)

// ComponentMalgo identifies errors from this package
const ComponentMalgo = "malgo"

// ErrDeviceStopped is reported through the error callback when the device
// stops without being asked to
var ErrDeviceStopped = errors.NewStd("capture device stopped unexpectedly")

// Opener implements audiocore.StreamOpener on the platform's native backend
type Opener struct {
	log logger.Logger
}

// NewOpener returns an opener logging to log
func NewOpener(log logger.Logger) *Opener {
	if log == nil {
		log = logger.Global().Module("malgo")
	}
	return &Opener{log: log}
}

// OpenStream initialises, but does not start, a capture device
func (o *Opener) OpenStream(cfg audiocore.CaptureConfig, callbacks audiocore.CaptureCallbacks) (audiocore.CaptureStream, error) {
	if err := validateConfig(cfg, callbacks); err != nil {
		return nil, err
	}

	ctx, err := initContext()
	if err != nil {
		return nil, err
	}

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		_ = releaseContext(ctx)
		return nil, hardwareError(err, "enumerate_devices").Build()
	}
	index, err := selectDevice(describeDevices(infos), cfg.Device)
	if err != nil {
		_ = releaseContext(ctx)
		return nil, err
	}
	info := infos[index]

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.Capture.DeviceID = info.ID.Pointer()
	deviceConfig.Capture.ShareMode = shareMode(cfg.SharingMode)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.PeriodFrames)
	deviceConfig.Alsa.NoMMap = 1

	s := &stream{ctx: ctx, callbacks: callbacks, name: info.Name()}
	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	})
	if err != nil {
		_ = releaseContext(ctx)
		return nil, hardwareError(err, "init_device").
			Context("device_name", info.Name()).
			Context("sharing", cfg.SharingMode.String()).
			Build()
	}
	s.device = device

	o.log.Info("capture device opened",
		logger.String("device", info.Name()),
		logger.Int("sample_rate", int(device.SampleRate())),
		logger.String("sharing", cfg.SharingMode.String()),
		logger.Int("period_frames", cfg.PeriodFrames))

	return s, nil
}

func validateConfig(cfg audiocore.CaptureConfig, callbacks audiocore.CaptureCallbacks) error {
	var problem string
	switch {
	case cfg.Format != audiocore.FormatS16:
		problem = "only s16le capture is supported"
	case cfg.Channels < 1:
		problem = "channel count must be positive"
	case cfg.SampleRate <= 0:
		problem = "sample rate must be positive"
	case cfg.PeriodFrames < 0:
		problem = "period must not be negative"
	case callbacks.Data == nil || callbacks.Error == nil:
		problem = "data and error callbacks are required"
	default:
		return nil
	}

	return errors.Newf("invalid capture config: %s", problem).
		Component(ComponentMalgo).
		Category(errors.CategoryValidation).
		Context("format", cfg.Format.String()).
		Context("channels", cfg.Channels).
		Context("sample_rate", cfg.SampleRate).
		Build()
}

func shareMode(mode audiocore.SharingMode) malgo.ShareMode {
	if mode == audiocore.SharingExclusive {
		return malgo.Exclusive
	}
	return malgo.Shared
}

// stream is an initialised malgo capture device
type stream struct {
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	callbacks audiocore.CaptureCallbacks
	name      string

	stopping  atomic.Bool
	closeOnce sync.Once
}

// onData runs on the miniaudio thread; the input slice is only valid during the call
func (s *stream) onData(_, input []byte, _ uint32) {
	s.callbacks.Data(input)
}

// onStop runs when the device stops, requested or not
func (s *stream) onStop() {
	if s.stopping.Load() {
		return
	}
	s.callbacks.Error(ErrDeviceStopped)
}

func (s *stream) Start() error {
	s.stopping.Store(false)
	if err := s.device.Start(); err != nil {
		return hardwareError(err, "start_device").Context("device_name", s.name).Build()
	}
	return nil
}

func (s *stream) Stop() error {
	s.stopping.Store(true)
	if !s.device.IsStarted() {
		return nil
	}
	if err := s.device.Stop(); err != nil {
		return hardwareError(err, "stop_device").Context("device_name", s.name).Build()
	}
	return nil
}

// Close releases the device and context. It is safe to call more than once.
func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stopping.Store(true)
		s.device.Uninit()
		if uninitErr := releaseContext(s.ctx); uninitErr != nil {
			err = hardwareError(uninitErr, "uninit_context").Build()
		}
	})
	return err
}

func hardwareError(err error, operation string) *errors.ErrorBuilder {
	return errors.New(err).
		Component(ComponentMalgo).
		Category(errors.CategoryHardware).
		Context("operation", operation)
}
