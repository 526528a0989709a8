package mqtt

// Topics used by the doorway counter node, the actuator node and the panel.
// Field names inside the payloads are fixed by the devices already deployed.
const (
	// TopicSecurityCount carries {"max_people": n} to set the capacity limit.
	TopicSecurityCount = "home/security/count"
	// TopicSecurityStatus carries {"people_count", "max_people_allowed"}.
	TopicSecurityStatus = "home/security/status"
	// TopicSecurityCommand carries {"command": "blink"}.
	TopicSecurityCommand = "home/security/command"

	TopicLightingCommand   = "home/lighting/command"
	TopicLightingStatus    = "home/lighting/status"
	TopicHumidifierCommand = "home/humidifier/command"
	TopicHumidifierStatus  = "home/humidifier/status"
	TopicServoCommand      = "home/servo/command"
	TopicServoStatus       = "home/servo/status"

	// TopicSensorData carries ambient readings as strings.
	TopicSensorData = "home/sensor/data"
	// TopicOTP carries {"otp": n} from the code display node.
	TopicOTP = "home/otp"

	// TopicSystemStatus is the retained online/offline (LWT) topic.
	TopicSystemStatus = "home/system/status"
)

// CommandTopics returns the inbound topics handled by the control loop, in
// the order they are subscribed.
func CommandTopics() []string {
	return []string{
		TopicSecurityCount,
		TopicLightingCommand,
		TopicHumidifierCommand,
		TopicServoCommand,
		TopicSecurityCommand,
	}
}

// IsCommandTopic reports whether topic is one of CommandTopics.
func IsCommandTopic(topic string) bool {
	for _, t := range CommandTopics() {
		if t == topic {
			return true
		}
	}
	return false
}
