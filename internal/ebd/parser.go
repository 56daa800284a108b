// Package ebd 解析 eWON 设备返回的 Extended Data Block 文本
package ebd

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrParse EBD 文本与期望的行/字段结构不符
var ErrParse = errors.New("ebd: parse error")

// liveTagFields 实时标签每行字段数：id;name;value;alarmStatus;alarmType;quality
const liveTagFields = 6

// TimestampLayout 历史数据时间戳格式（dd/MM/yyyy HH:mm:ss）
const TimestampLayout = "02/01/2006 15:04:05"

// TagRecord 实时标签记录，字段保持设备原始文本
type TagRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Value       string `json:"value"`
	AlarmStatus string `json:"alarmStatus"`
	AlarmType   string `json:"alarmType"`
	Quality     string `json:"quality"`
}

// Sample 历史采样点
type Sample struct {
	Timestamp string `json:"timestamp"`
	Value     string `json:"value"`
}

// Time 按 TimestampLayout 解析时间戳（UTC）
func (s Sample) Time() (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s.Timestamp, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrParse, s.Timestamp)
	}
	return t, nil
}

// HistoricalSeries 标签名 -> 按行顺序排列的采样点
type HistoricalSeries map[string][]Sample

// ParseLiveTags 解析实时标签（$dtIV）响应。
// 首行为表头，末尾空行丢弃；任一行字段数不为 6 则整体失败，不返回部分结果。
// 标签名重复时后出现的行覆盖先出现的行。
func ParseLiveTags(body string) (map[string]TagRecord, error) {
	_, rows, err := splitRows(body)
	if err != nil {
		return nil, err
	}

	tags := make(map[string]TagRecord, len(rows))
	for i, row := range rows {
		fields := strings.Split(row, ";")
		if len(fields) != liveTagFields {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrParse, i+2, len(fields), liveTagFields)
		}
		rec := TagRecord{
			ID:          fields[0],
			Name:        fields[1],
			Value:       fields[2],
			AlarmStatus: fields[3],
			AlarmType:   fields[4],
			Quality:     fields[5],
		}
		tags[rec.Name] = rec
	}
	return tags, nil
}

// ParseHistorical 解析历史数据（$dtHT）响应。
// 表头第 2 列起为标签名；每个标签按其所在列取值，时间戳取第 0 列。
// 表头标签名重复时整体失败。
func ParseHistorical(body string) (HistoricalSeries, error) {
	header, rows, err := splitRows(body)
	if err != nil {
		return nil, err
	}

	columns := strings.Split(header, ";")
	if len(columns) < 3 {
		return nil, fmt.Errorf("%w: header has %d fields, want at least 3", ErrParse, len(columns))
	}
	names := columns[2:]

	series := make(HistoricalSeries, len(names))
	for c, name := range names {
		if _, dup := series[name]; dup {
			return nil, fmt.Errorf("%w: header column %d repeats tag %q", ErrParse, c+2, name)
		}
		series[name] = make([]Sample, 0, len(rows))
	}
	for i, row := range rows {
		fields := strings.Split(row, ";")
		if len(fields) != len(columns) {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrParse, i+2, len(fields), len(columns))
		}
		for c, name := range names {
			series[name] = append(series[name], Sample{Timestamp: fields[0], Value: fields[c+2]})
		}
	}
	return series, nil
}

// splitRows 去除引号与回车后按行拆分，返回表头与数据行
func splitRows(body string) (string, []string, error) {
	cleaned := strings.NewReplacer(`"`, "", "\r", "").Replace(body)
	if cleaned == "" {
		return "", nil, fmt.Errorf("%w: empty body", ErrParse)
	}

	lines := strings.Split(cleaned, "\n")
	// 设备输出以换行结尾，最后一个元素为空
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 || lines[0] == "" {
		return "", nil, fmt.Errorf("%w: missing header", ErrParse)
	}
	return lines[0], lines[1:], nil
}
