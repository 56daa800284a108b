package talk2m

import (
	"fmt"
)

// AccountCredentials Talk2M 账号凭据，构造后不可变
type AccountCredentials struct {
	AccountName string
	Username    string
	Password    string
	DeveloperID string
}

// Validate 所有字段必须非空
func (c AccountCredentials) Validate() error {
	if err := required(c.AccountName, "account name"); err != nil {
		return err
	}
	if err := required(c.Username, "username"); err != nil {
		return err
	}
	if err := required(c.Password, "password"); err != nil {
		return err
	}
	if err := required(c.DeveloperID, "developer id"); err != nil {
		return err
	}
	return validateDeveloperID(c.DeveloperID)
}

// validateDeveloperID 开发者 ID 格式校验预留，目前接受任意非空字符串
func validateDeveloperID(string) error {
	return nil
}

// DeviceCredentials 设备级凭据（eWON 本地账号）
type DeviceCredentials struct {
	DeviceName string `yaml:"name" json:"name"`
	Username   string `yaml:"username" json:"-"`
	Password   string `yaml:"password" json:"-"`
}

// Validate 所有字段必须非空
func (c DeviceCredentials) Validate() error {
	if err := required(c.DeviceName, "device name"); err != nil {
		return err
	}
	if err := required(c.Username, "device username"); err != nil {
		return err
	}
	return required(c.Password, "device password")
}

func required(v, name string) error {
	if v == "" {
		return fmt.Errorf("%w: %s is blank", ErrConstruction, name)
	}
	return nil
}
