package malgo

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/voicecap/internal/errors"
)

// DeviceInfo describes a capture device
type DeviceInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	IsDefault bool   `json:"is_default"`
}

// nullDeviceName is the miniaudio null backend's sink
const nullDeviceName = "Discard all samples"

// backendForPlatform returns the malgo backend for the current platform
func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.Newf("unsupported operating system %s", runtime.GOOS).
			Component(ComponentMalgo).
			Category(errors.CategoryHardware).
			Context("os", runtime.GOOS).
			Build()
	}
}

// initContext opens a malgo context on the platform backend
func initContext() (*malgo.AllocatedContext, error) {
	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, hardwareError(err, "init_context").Context("backend", runtime.GOOS).Build()
	}
	return ctx, nil
}

func releaseContext(ctx *malgo.AllocatedContext) error {
	err := ctx.Uninit()
	ctx.Free()
	return err
}

// ListDevices returns the capture devices of the platform backend
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}
	defer func() { _ = releaseContext(ctx) }()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, hardwareError(err, "enumerate_devices").Build()
	}
	return describeDevices(infos), nil
}

func describeDevices(infos []malgo.DeviceInfo) []DeviceInfo {
	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		name := infos[i].Name()
		if strings.Contains(name, nullDeviceName) {
			continue
		}

		id, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			id = infos[i].ID.String()
		}

		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      name,
			ID:        id,
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices
}

// selectDevice picks the device matching want, in order of preference: the
// default device for an empty name or "default", an exact name, a decoded
// ID, then a partial name. It returns the Index of the match.
func selectDevice(devices []DeviceInfo, want string) (int, error) {
	if want == "" || want == "default" || want == "sysdefault" {
		for _, d := range devices {
			if d.IsDefault {
				return d.Index, nil
			}
		}
		if len(devices) > 0 {
			return devices[0].Index, nil
		}
	}

	for _, d := range devices {
		if d.Name == want {
			return d.Index, nil
		}
	}
	for _, d := range devices {
		if d.ID == want {
			return d.Index, nil
		}
	}
	for _, d := range devices {
		if want != "" && strings.Contains(d.Name, want) {
			return d.Index, nil
		}
	}

	return -1, errors.Newf("no matching capture device").
		Component(ComponentMalgo).
		Category(errors.CategoryNotFound).
		Context("device_name", want).
		Context("available_devices", len(devices)).
		Build()
}

// hexToASCII decodes the hex device IDs reported by ALSA
func hexToASCII(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}
