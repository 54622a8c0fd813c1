package zenohclient

import "fmt"

// TopicImageRaw carries binary msgs.Image payloads.
const TopicImageRaw = "image_raw"

// TopicCameraInfo carries JSON msgs.CameraInfo payloads.
const TopicCameraInfo = "camera_info"

// Topics builds fully-qualified key expressions.
type Topics struct {
	prefix     string
	image      string
	cameraInfo string
}

// NewTopics creates a Topics helper with the default topic names.
func NewTopics(prefix string) *Topics {
	return &Topics{
		prefix:     prefix,
		image:      TopicImageRaw,
		cameraInfo: TopicCameraInfo,
	}
}

func topicsFromConfig(cfg Config) *Topics {
	t := NewTopics(cfg.Prefix)
	if cfg.ImageTopic != "" {
		t.image = cfg.ImageTopic
	}
	if cfg.CameraInfoTopic != "" {
		t.cameraInfo = cfg.CameraInfoTopic
	}
	return t
}

// ImageRaw returns the image key expression.
func (t *Topics) ImageRaw() string {
	return fmt.Sprintf("%s/%s", t.prefix, t.image)
}

// CameraInfo returns the camera info key expression.
func (t *Topics) CameraInfo() string {
	return fmt.Sprintf("%s/%s", t.prefix, t.cameraInfo)
}
