// Package source reads and writes declarative mix definition files.
//
// A mix file is YAML:
//
//	mixes:
//	  - registration_id: "remote_submix:media"
//	    type: players
//	    device_type: out_remote_submix
//	    route_flags: [loop_back]
//	    callback_flags: [notify_activity]
//	    format:
//	      sample_rate: 48000
//	      format: 1
//	      channel_mask: 3
//	    criteria:
//	      - {field: usage, value: media}
//	      - {field: uid, value: 1000, exclude: true}
//
// Usage, source and device values accept names or numeric codes. Field
// names are usage, capture_preset (or source), uid, user_id and session_id.
// Parsing does not enforce the registry limits; the registry does.
package source
