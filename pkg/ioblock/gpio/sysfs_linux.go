//go:build linux
// +build linux

package gpio

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Sysfs drives pins through the Linux sysfs GPIO interface. Analog inputs
// are read from an IIO device when IIODevice is set; analog outputs are
// not supported.
type Sysfs struct {
	Root      string
	IIODevice string

	lock  sync.Mutex
	files map[int]*os.File
}

// NewSysfs creates sysfs pins rooted at /sys/class/gpio.
func NewSysfs() *Sysfs {
	return &Sysfs{Root: "/sys/class/gpio", files: make(map[int]*os.File)}
}

func writeFile(name, content string) error {
	f, err := os.OpenFile(name, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	_, err = f.WriteString(content)
	if e := f.Close(); err == nil {
		err = e
	}
	return err
}

func (s *Sysfs) pinDir(pin int) string {
	return filepath.Join(s.Root, "gpio"+strconv.Itoa(pin))
}

// SetMode implements Pins.
func (s *Sysfs) SetMode(pin int, mode Mode) error {
	switch mode {
	case ModeAnalogInput:
		if s.IIODevice == "" {
			return ErrUnsupportedMode
		}
		_, err := os.Stat(s.analogPath(pin))
		return err
	case ModeAnalogOutput:
		return ErrUnsupportedMode
	}
	dir := s.pinDir(pin)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err = writeFile(filepath.Join(s.Root, "export"), strconv.Itoa(pin)); err != nil {
			return err
		}
	}
	direction := "in"
	if mode == ModeDigitalOutput {
		direction = "out"
	}
	if err := writeFile(filepath.Join(dir, "direction"), direction); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, "value"), os.O_RDWR, 0)
	if err != nil {
		return err
	}
	s.lock.Lock()
	if old := s.files[pin]; old != nil {
		old.Close()
	}
	s.files[pin] = f
	s.lock.Unlock()
	return nil
}

func (s *Sysfs) valueFile(pin int) (*os.File, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	f := s.files[pin]
	if f == nil {
		return nil, fmt.Errorf("pin %d not exported", pin)
	}
	return f, nil
}

// ReadDigital implements Pins.
func (s *Sysfs) ReadDigital(pin int) (bool, error) {
	f, err := s.valueFile(pin)
	if err != nil {
		return false, err
	}
	var buf [2]byte
	n, err := f.ReadAt(buf[:], 0)
	if n == 0 {
		return false, err
	}
	return buf[0] == '1', nil
}

// WriteDigital implements Pins.
func (s *Sysfs) WriteDigital(pin int, value bool) error {
	f, err := s.valueFile(pin)
	if err != nil {
		return err
	}
	content := []byte{'0'}
	if value {
		content[0] = '1'
	}
	_, err = f.WriteAt(content, 0)
	return err
}

func (s *Sysfs) analogPath(pin int) string {
	return filepath.Join(s.IIODevice, fmt.Sprintf("in_voltage%d_raw", pin))
}

// ReadAnalog implements Pins.
func (s *Sysfs) ReadAnalog(pin int) (uint16, error) {
	content, err := os.ReadFile(s.analogPath(pin))
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(bytes.TrimSpace(content)), 10, 16)
	return uint16(v), err
}

// WriteAnalog implements Pins.
func (s *Sysfs) WriteAnalog(pin int, value uint16) error {
	return ErrUnsupportedMode
}

// Close releases all value files.
func (s *Sysfs) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	for pin, f := range s.files {
		f.Close()
		delete(s.files, pin)
	}
	return nil
}
