package broadcaster

import (
	"encoding/json"

	"github.com/rsdds/device-bridge/internal/devicemodel"
)

// wireRecord is the self-describing device-info payload published on the
// broadcast topic.
type wireRecord struct {
	Name        string `json:"name"`
	Serial      string `json:"serial"`
	ProductLine string `json:"product-line"`
	Locked      bool   `json:"locked"`
	TopicRoot   string `json:"topic-root"`
}

func encode(info devicemodel.DeviceInfo) ([]byte, error) {
	return json.Marshal(wireRecord{
		Name:        info.Name,
		Serial:      info.Serial,
		ProductLine: info.ProductLine,
		Locked:      info.Locked,
		TopicRoot:   info.TopicRoot,
	})
}

// Decode parses a device-info record off the broadcast topic. Exported for
// subscriber-side callers building a local device mirror.
func Decode(payload []byte) (devicemodel.DeviceInfo, error) {
	var w wireRecord
	if err := json.Unmarshal(payload, &w); err != nil {
		return devicemodel.DeviceInfo{}, err
	}
	return devicemodel.DeviceInfo{
		Name:        w.Name,
		Serial:      w.Serial,
		ProductLine: w.ProductLine,
		Locked:      w.Locked,
		TopicRoot:   w.TopicRoot,
	}, nil
}
