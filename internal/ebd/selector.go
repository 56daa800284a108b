package ebd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EBD 选择器
const (
	LiveTagsSelector   = "$dtIV$ftT"
	HistoricalSelector = "$dtHT$ftT"

	// DefaultWindowEnd 未指定结束时间时使用的结束后缀（当前时刻）
	DefaultWindowEnd = "$et_s0"
)

// ErrInvalidWindow 历史窗口参数非法
var ErrInvalidWindow = errors.New("ebd: invalid history window")

// Unit 相对时间单位
type Unit string

const (
	Seconds Unit = "s"
	Minutes Unit = "m"
	Hours   Unit = "h"
	Days    Unit = "d"
)

// ParseUnit 校验单位字符串
func ParseUnit(s string) (Unit, error) {
	switch u := Unit(strings.ToLower(s)); u {
	case Seconds, Minutes, Hours, Days:
		return u, nil
	}
	return "", fmt.Errorf("%w: unknown unit %q", ErrInvalidWindow, s)
}

// Offset 相对当前时刻的偏移量，例如 10 分钟前 = {10, Minutes}
type Offset struct {
	Value int  `json:"value"`
	Unit  Unit `json:"unit"`
}

func (o Offset) suffix(kind string) (string, error) {
	if _, err := ParseUnit(string(o.Unit)); err != nil {
		return "", err
	}
	if o.Value < 0 {
		return "", fmt.Errorf("%w: negative offset %d", ErrInvalidWindow, o.Value)
	}
	return "$" + kind + "_" + string(o.Unit) + strconv.Itoa(o.Value), nil
}

// Window 相对历史窗口，Start/End 为空表示省略
type Window struct {
	Start *Offset `json:"start,omitempty"`
	End   *Offset `json:"end,omitempty"`
}

// Since 构造仅带起点的窗口
func Since(value int, unit Unit) Window {
	return Window{Start: &Offset{Value: value, Unit: unit}}
}

// SinceDuration 将时长换算为最粗的整单位起点：整天用 d，整小时用 h，整分钟用 m，否则 s
func SinceDuration(d time.Duration) Window {
	if d < 0 {
		d = 0
	}
	switch {
	case d >= 24*time.Hour && d%(24*time.Hour) == 0:
		return Since(int(d/(24*time.Hour)), Days)
	case d >= time.Hour && d%time.Hour == 0:
		return Since(int(d/time.Hour), Hours)
	case d >= time.Minute && d%time.Minute == 0:
		return Since(int(d/time.Minute), Minutes)
	default:
		return Since(int(d/time.Second), Seconds)
	}
}

// Between 构造带起点与终点的窗口
func Between(startValue int, startUnit Unit, endValue int, endUnit Unit) Window {
	return Window{
		Start: &Offset{Value: startValue, Unit: startUnit},
		End:   &Offset{Value: endValue, Unit: endUnit},
	}
}

// Selector 生成历史查询选择器：$dtHT$ftT[$st_<unit><n>]$et_<unit><n>
func (w Window) Selector() (string, error) {
	var b strings.Builder
	b.WriteString(HistoricalSelector)
	if w.Start != nil {
		st, err := w.Start.suffix("st")
		if err != nil {
			return "", err
		}
		b.WriteString(st)
	}
	if w.End == nil {
		b.WriteString(DefaultWindowEnd)
		return b.String(), nil
	}
	et, err := w.End.suffix("et")
	if err != nil {
		return "", err
	}
	b.WriteString(et)
	return b.String(), nil
}
