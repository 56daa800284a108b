package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DeviceEntry 设备簿条目：eWON 名称与本地账号
type DeviceEntry struct {
	Name     string `yaml:"name"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DeviceBook 设备名 -> 设备凭据
type DeviceBook struct {
	entries map[string]DeviceEntry
}

type deviceFile struct {
	Devices []DeviceEntry `yaml:"devices"`
}

// LoadDeviceBook 从 YAML 文件加载设备凭据。文件不存在时返回空设备簿
func LoadDeviceBook(path string) (*DeviceBook, error) {
	book := &DeviceBook{entries: map[string]DeviceEntry{}}
	if path == "" {
		return book, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return book, nil
		}
		return nil, fmt.Errorf("read devices file: %w", err)
	}
	return ParseDeviceBook(data)
}

// ParseDeviceBook 解析设备簿 YAML
func ParseDeviceBook(data []byte) (*DeviceBook, error) {
	var f deviceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse devices file: %w", err)
	}
	book := &DeviceBook{entries: make(map[string]DeviceEntry, len(f.Devices))}
	for i, d := range f.Devices {
		if d.Name == "" {
			return nil, fmt.Errorf("devices[%d]: name is blank", i)
		}
		if _, dup := book.entries[d.Name]; dup {
			return nil, fmt.Errorf("devices[%d]: duplicate device %q", i, d.Name)
		}
		book.entries[d.Name] = d
	}
	return book, nil
}

// Lookup 查找设备凭据
func (b *DeviceBook) Lookup(name string) (DeviceEntry, bool) {
	if b == nil {
		return DeviceEntry{}, false
	}
	d, ok := b.entries[name]
	return d, ok
}

// Names 按字母序返回设备名
func (b *DeviceBook) Names() []string {
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.entries))
	for n := range b.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len 设备数量
func (b *DeviceBook) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}
