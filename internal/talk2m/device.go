package talk2m

import (
	"context"
	"fmt"
	"strconv"

	"github.com/taoyao-code/talk2m-gateway/internal/ebd"
)

// TagUpdate 待写入的标签值
type TagUpdate struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Device 单台 eWON 的操作入口。client 为非拥有引用
type Device struct {
	creds  DeviceCredentials
	client *Client
}

// Name 设备名
func (d *Device) Name() string {
	return d.creds.DeviceName
}

// LiveTags 读取全部实时标签
func (d *Device) LiveTags(ctx context.Context) (map[string]ebd.TagRecord, error) {
	body, err := d.post(ctx, FormParam, Param{Key: FieldASTParam, Value: ebd.LiveTagsSelector})
	if err != nil {
		return nil, err
	}
	tags, err := ebd.ParseLiveTags(body)
	d.client.metrics.ObserveParse("live", err)
	if err != nil {
		return nil, fmt.Errorf("device %s live tags: %w", d.creds.DeviceName, err)
	}
	return tags, nil
}

// UpdateTags 写入一个或多个标签，字段编号从 1 开始：TagName1/TagValue1 ...
// 返回设备确认应答按实时标签格式解析的结果
func (d *Device) UpdateTags(ctx context.Context, tags ...TagUpdate) (map[string]ebd.TagRecord, error) {
	params, err := encodeTagUpdates(tags)
	if err != nil {
		return nil, err
	}
	body, err := d.post(ctx, FormUpdateTag, params...)
	if err != nil {
		return nil, err
	}
	ack, err := ebd.ParseLiveTags(body)
	d.client.metrics.ObserveParse("live", err)
	if err != nil {
		return nil, fmt.Errorf("device %s update tags: %w", d.creds.DeviceName, err)
	}
	return ack, nil
}

// HistoricalRelative 读取相对时间窗口内的历史数据
func (d *Device) HistoricalRelative(ctx context.Context, window ebd.Window) (ebd.HistoricalSeries, error) {
	selector, err := window.Selector()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	body, err := d.post(ctx, FormParam, Param{Key: FieldASTParam, Value: selector})
	if err != nil {
		return nil, err
	}
	series, err := ebd.ParseHistorical(body)
	d.client.metrics.ObserveParse("historical", err)
	if err != nil {
		return nil, fmt.Errorf("device %s history: %w", d.creds.DeviceName, err)
	}
	return series, nil
}

func (d *Device) post(ctx context.Context, form string, extra ...Param) (string, error) {
	params := make([]Param, 0, 2+len(extra))
	params = append(params,
		Param{Key: FieldDeviceUsername, Value: d.creds.Username},
		Param{Key: FieldDevicePassword, Value: d.creds.Password},
	)
	params = append(params, extra...)
	return d.client.call(ctx, DeviceRoute(d.creds.DeviceName, form), params...)
}

// encodeTagUpdates 编码为 TagName{i}/TagValue{i} 成对字段
func encodeTagUpdates(tags []TagUpdate) ([]Param, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: no tags to update", ErrInvalidArgument)
	}
	params := make([]Param, 0, 2*len(tags))
	for i, t := range tags {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: tag %d has empty name", ErrInvalidArgument, i+1)
		}
		n := strconv.Itoa(i + 1)
		params = append(params,
			Param{Key: "TagName" + n, Value: t.Name},
			Param{Key: "TagValue" + n, Value: t.Value},
		)
	}
	return params, nil
}
