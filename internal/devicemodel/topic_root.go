package devicemodel

import "strings"

const topicRootPrefix = "Intel RealSense "

// TopicRoot derives a device's root topic path from its broadcast name and
// serial number: strip the vendor prefix if present, and combine the
// remaining model name with the serial under the "realsense/" namespace so
// two devices of the same model never collide.
//
// Grounded on dds_device_broadcaster::get_topic_root, which strips the
// leading "Intel RealSense " (16 characters) from the device name before
// combining it with the serial.
func TopicRoot(name, serial string) string {
	trimmed := strings.TrimPrefix(name, topicRootPrefix)
	return "realsense/" + trimmed + "/" + serial
}
