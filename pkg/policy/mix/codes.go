package mix

import (
	"strconv"
	"strings"
)

// Usage codes of playback streams.
const (
	UsageUnknown                       Usage = 0
	UsageMedia                         Usage = 1
	UsageVoiceCommunication            Usage = 2
	UsageVoiceCommunicationSignalling  Usage = 3
	UsageAlarm                         Usage = 4
	UsageNotification                  Usage = 5
	UsageNotificationTelephonyRingtone Usage = 6
	UsageAssistanceAccessibility       Usage = 11
	UsageAssistanceNavigationGuidance  Usage = 12
	UsageAssistanceSonification        Usage = 13
	UsageGame                          Usage = 14
	UsageVirtualSource                 Usage = 15
	UsageAssistant                     Usage = 16
	UsageCallAssistant                 Usage = 17
	UsageEmergency                     Usage = 1000
	UsageSafety                        Usage = 1001
	UsageVehicleStatus                 Usage = 1002
	UsageAnnouncement                  Usage = 1003
)

// Source (capture preset) codes of capture streams.
const (
	SourceDefault            Source = 0
	SourceMic                Source = 1
	SourceVoiceUplink        Source = 2
	SourceVoiceDownlink      Source = 3
	SourceVoiceCall          Source = 4
	SourceCamcorder          Source = 5
	SourceVoiceRecognition   Source = 6
	SourceVoiceCommunication Source = 7
	SourceRemoteSubmix       Source = 8
	SourceUnprocessed        Source = 9
	SourceVoicePerformance   Source = 10
	SourceEchoReference      Source = 1997
	SourceFMTuner            Source = 1998
	SourceHotword            Source = 1999
)

// DeviceType is the device class a mix is anchored to.
type DeviceType uint32

// Device types commonly bound to dynamic mixes.
const (
	DeviceNone             DeviceType = 0x0
	DeviceOutEarpiece      DeviceType = 0x1
	DeviceOutSpeaker       DeviceType = 0x2
	DeviceOutWiredHeadset  DeviceType = 0x4
	DeviceOutBluetoothA2DP DeviceType = 0x80
	DeviceOutRemoteSubmix  DeviceType = 0x8000
	DeviceOutBus           DeviceType = 0x1000000
	DeviceInBuiltinMic     DeviceType = 0x80000004
	DeviceInRemoteSubmix   DeviceType = 0x80000100
	DeviceInBus            DeviceType = 0x80100000
	deviceInBit            DeviceType = 0x80000000
)

// IsInput reports whether the device type is a capture device.
func (d DeviceType) IsInput() bool {
	return d&deviceInBit != 0
}

var usageNames = map[string]Usage{
	"unknown":                         UsageUnknown,
	"media":                           UsageMedia,
	"voice_communication":             UsageVoiceCommunication,
	"voice_communication_signalling":  UsageVoiceCommunicationSignalling,
	"alarm":                           UsageAlarm,
	"notification":                    UsageNotification,
	"notification_telephony_ringtone": UsageNotificationTelephonyRingtone,
	"assistance_accessibility":        UsageAssistanceAccessibility,
	"assistance_navigation_guidance":  UsageAssistanceNavigationGuidance,
	"assistance_sonification":         UsageAssistanceSonification,
	"game":                            UsageGame,
	"virtual_source":                  UsageVirtualSource,
	"assistant":                       UsageAssistant,
	"call_assistant":                  UsageCallAssistant,
	"emergency":                       UsageEmergency,
	"safety":                          UsageSafety,
	"vehicle_status":                  UsageVehicleStatus,
	"announcement":                    UsageAnnouncement,
}

var sourceNames = map[string]Source{
	"default":             SourceDefault,
	"mic":                 SourceMic,
	"voice_uplink":        SourceVoiceUplink,
	"voice_downlink":      SourceVoiceDownlink,
	"voice_call":          SourceVoiceCall,
	"camcorder":           SourceCamcorder,
	"voice_recognition":   SourceVoiceRecognition,
	"voice_communication": SourceVoiceCommunication,
	"remote_submix":       SourceRemoteSubmix,
	"unprocessed":         SourceUnprocessed,
	"voice_performance":   SourceVoicePerformance,
	"echo_reference":      SourceEchoReference,
	"fm_tuner":            SourceFMTuner,
	"hotword":             SourceHotword,
}

var deviceNames = map[string]DeviceType{
	"none":               DeviceNone,
	"out_earpiece":       DeviceOutEarpiece,
	"out_speaker":        DeviceOutSpeaker,
	"out_wired_headset":  DeviceOutWiredHeadset,
	"out_bluetooth_a2dp": DeviceOutBluetoothA2DP,
	"out_remote_submix":  DeviceOutRemoteSubmix,
	"out_bus":            DeviceOutBus,
	"in_builtin_mic":     DeviceInBuiltinMic,
	"in_remote_submix":   DeviceInRemoteSubmix,
	"in_bus":             DeviceInBus,
}

// ParseUsage accepts a usage name ("alarm") or a decimal code ("4").
// Unknown codes are accepted as-is.
func ParseUsage(s string) (Usage, bool) {
	if u, ok := usageNames[normalizeName(s)]; ok {
		return u, true
	}
	n, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, false
	}
	return Usage(n), true
}

// ParseSource accepts a source name ("mic") or a decimal code.
func ParseSource(s string) (Source, bool) {
	if src, ok := sourceNames[normalizeName(s)]; ok {
		return src, true
	}
	n, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, false
	}
	return Source(n), true
}

// ParseDeviceType accepts a device name ("out_remote_submix") or a numeric
// code, hexadecimal allowed.
func ParseDeviceType(s string) (DeviceType, bool) {
	if d, ok := deviceNames[normalizeName(s)]; ok {
		return d, true
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, false
	}
	return DeviceType(n), true
}

// String returns the usage name, or its decimal code when unnamed.
func (u Usage) String() string {
	for name, code := range usageNames {
		if code == u {
			return name
		}
	}
	return strconv.FormatInt(int64(u), 10)
}

// String returns the source name, or its decimal code when unnamed.
func (s Source) String() string {
	for name, code := range sourceNames {
		if code == s {
			return name
		}
	}
	return strconv.FormatInt(int64(s), 10)
}

// String returns the device name, or its hexadecimal code when unnamed.
func (d DeviceType) String() string {
	for name, code := range deviceNames {
		if code == d {
			return name
		}
	}
	return "0x" + strconv.FormatUint(uint64(d), 16)
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "usage_")
	s = strings.TrimPrefix(s, "source_")
	return strings.ReplaceAll(s, "-", "_")
}
