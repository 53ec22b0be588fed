package device

import (
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// Device holds the descriptors and state of a USB device.
type Device struct {
	Descriptor DeviceDescriptor

	configurations     [MaxConfigurations]*Configuration
	configurationCount int
	activeConfig       *Configuration

	strings [MaxStrings][]byte

	state   State
	address uint8

	remoteWakeup bool

	mutex syncutil.RWMutex

	onStateChange      func(old, new State)
	onReset            func()
	onSetConfiguration func(config uint8)
}

// NewDevice creates a device in the attached state.
func NewDevice(desc DeviceDescriptor) *Device {
	return &Device{
		Descriptor: desc,
		state:      StateAttached,
	}
}

// AddConfiguration adds a configuration to the device.
func (d *Device) AddConfiguration(config *Configuration) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.configurationCount >= MaxConfigurations {
		return pkg.ErrInvalidParameter
	}
	for idx := 0; idx < d.configurationCount; idx++ {
		if d.configurations[idx].Value == config.Value {
			return pkg.ErrInvalidParameter
		}
	}
	d.configurations[d.configurationCount] = config
	d.configurationCount++
	d.Descriptor.NumConfigurations = uint8(d.configurationCount)
	return nil
}

// ConfigurationAt returns the configuration at a descriptor index, as
// used by GET_DESCRIPTOR.
func (d *Device) ConfigurationAt(index uint8) *Configuration {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	if int(index) >= d.configurationCount {
		return nil
	}
	return d.configurations[index]
}

// GetConfiguration returns the configuration with the given value.
func (d *Device) GetConfiguration(value uint8) *Configuration {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	for idx := 0; idx < d.configurationCount; idx++ {
		if d.configurations[idx].Value == value {
			return d.configurations[idx]
		}
	}
	return nil
}

// ActiveConfiguration returns the selected configuration, or nil.
func (d *Device) ActiveConfiguration() *Configuration {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.activeConfig
}

// SetString stores an encoded string descriptor by reference.
func (d *Device) SetString(index uint8, data []byte) {
	if index >= MaxStrings {
		return
	}
	d.mutex.Lock()
	d.strings[index] = data
	d.mutex.Unlock()
}

// GetString returns an encoded string descriptor, or nil.
func (d *Device) GetString(index uint8) []byte {
	if index >= MaxStrings {
		return nil
	}
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.strings[index]
}

// State returns the current device state.
func (d *Device) State() State {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.state
}

func (d *Device) setState(newState State) {
	d.mutex.Lock()
	oldState := d.state
	d.state = newState
	callback := d.onStateChange
	d.mutex.Unlock()

	if oldState == newState {
		return
	}
	pkg.LogDebug(pkg.ComponentDevice, "device state changed",
		"from", oldState.String(),
		"to", newState.String())
	if callback != nil {
		callback(oldState, newState)
	}
}

// Address returns the device address.
func (d *Device) Address() uint8 {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.address
}

// IsConfigured returns true if the device is configured.
func (d *Device) IsConfigured() bool {
	return d.State() == StateConfigured
}

// Attach moves an attached device to the powered state.
func (d *Device) Attach() {
	if d.State() == StateAttached {
		d.setState(StatePowered)
	}
}

// Reset handles a bus reset.
func (d *Device) Reset() {
	d.mutex.Lock()
	d.address = 0
	d.activeConfig = nil
	d.remoteWakeup = false
	callback := d.onReset
	d.mutex.Unlock()

	d.setState(StateDefault)
	if callback != nil {
		callback()
	}
}

// SetAddress handles SET_ADDRESS.
func (d *Device) SetAddress(address uint8) error {
	d.mutex.Lock()
	if d.state != StateDefault && d.state != StateAddress {
		d.mutex.Unlock()
		return pkg.ErrInvalidState
	}
	d.address = address
	d.mutex.Unlock()

	if address == 0 {
		d.setState(StateDefault)
	} else {
		d.setState(StateAddress)
	}
	return nil
}

// SetConfiguration handles SET_CONFIGURATION. Value zero returns the
// device to the address state.
func (d *Device) SetConfiguration(value uint8) error {
	d.mutex.Lock()
	if d.state != StateAddress && d.state != StateConfigured {
		d.mutex.Unlock()
		return pkg.ErrInvalidState
	}
	if value == 0 {
		d.activeConfig = nil
		d.mutex.Unlock()
		d.setState(StateAddress)
		return nil
	}

	var config *Configuration
	for idx := 0; idx < d.configurationCount; idx++ {
		if d.configurations[idx].Value == value {
			config = d.configurations[idx]
			break
		}
	}
	if config == nil {
		d.mutex.Unlock()
		return pkg.ErrInvalidRequest
	}
	d.activeConfig = config
	callback := d.onSetConfiguration
	d.mutex.Unlock()

	d.setState(StateConfigured)
	if callback != nil {
		callback(value)
	}
	pkg.LogInfo(pkg.ComponentDevice, "device configured", "configuration", value)
	return nil
}

// EnableRemoteWakeup enables or disables remote wakeup.
func (d *Device) EnableRemoteWakeup(enabled bool) {
	d.mutex.Lock()
	d.remoteWakeup = enabled
	d.mutex.Unlock()
}

// GetInterface returns an interface of the active configuration, or nil.
func (d *Device) GetInterface(number uint8) *Interface {
	config := d.ActiveConfiguration()
	if config == nil {
		return nil
	}
	return config.GetInterface(number)
}

// GetEndpoint returns a data endpoint of the active configuration, or nil.
func (d *Device) GetEndpoint(address uint8) *Endpoint {
	config := d.ActiveConfiguration()
	if config == nil {
		return nil
	}
	for _, iface := range config.Interfaces() {
		if ep := iface.GetEndpoint(address); ep != nil {
			return ep
		}
	}
	return nil
}

// Status returns the GET_STATUS bits of the device.
func (d *Device) Status() uint16 {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	var status uint16
	if d.activeConfig != nil && d.activeConfig.Attributes&ConfigAttrSelfPowered != 0 {
		status |= 1 << 0
	}
	if d.remoteWakeup {
		status |= 1 << 1
	}
	return status
}

// SetOnStateChange sets the state change callback.
func (d *Device) SetOnStateChange(cb func(old, new State)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.onStateChange = cb
}

// SetOnReset sets the bus reset callback.
func (d *Device) SetOnReset(cb func()) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.onReset = cb
}

// SetOnSetConfiguration sets the callback run after SET_CONFIGURATION
// selects a configuration.
func (d *Device) SetOnSetConfiguration(cb func(config uint8)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.onSetConfiguration = cb
}

// Close releases the class drivers of every configuration.
func (d *Device) Close() error {
	d.mutex.Lock()
	configs := d.configurations
	count := d.configurationCount
	d.activeConfig = nil
	d.mutex.Unlock()

	var lastErr error
	for idx := 0; idx < count; idx++ {
		if err := configs[idx].Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
