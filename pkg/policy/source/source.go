package source

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"mercator-hq/mixpolicy/pkg/policy/mix"
)

// MaxFileSize bounds the size of a mix file.
const MaxFileSize = 1 << 20

// Load reads and parses the mix file at path.
func Load(path string) ([]*mix.Mix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "cannot open file", Cause: err}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "cannot read file", Cause: err}
	}
	if len(data) > MaxFileSize {
		return nil, &LoadError{FilePath: path, Message: fmt.Sprintf("file exceeds %d bytes", MaxFileSize)}
	}

	return Parse(data, path)
}

// Parse decodes mix definitions. path is used in error messages only. The
// returned mixes carry no owner token.
func Parse(data []byte, path string) ([]*mix.Mix, error) {
	var doc file
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{FilePath: path, Message: "invalid YAML", Cause: err}
	}

	mixes := make([]*mix.Mix, 0, len(doc.Mixes))
	seen := make(map[string]bool, len(doc.Mixes))
	for i := range doc.Mixes {
		m, err := doc.Mixes[i].toMix(path, i)
		if err != nil {
			return nil, err
		}
		if seen[m.RegistrationID] {
			return nil, doc.Mixes[i].RegistrationID.errorf(path, "duplicate registration id %q", m.RegistrationID)
		}
		seen[m.RegistrationID] = true
		mixes = append(mixes, m)
	}
	return mixes, nil
}

// Marshal renders mixes as a mix file. Owner tokens are not written.
func Marshal(mixes []*mix.Mix) ([]byte, error) {
	doc := file{Mixes: make([]mixDef, 0, len(mixes))}
	for _, m := range mixes {
		doc.Mixes = append(doc.Mixes, fromMix(m))
	}
	return yaml.Marshal(&doc)
}

type file struct {
	Mixes []mixDef `yaml:"mixes"`
}

type mixDef struct {
	RegistrationID                      scalar         `yaml:"registration_id"`
	Type                                scalar         `yaml:"type"`
	DeviceType                          scalar         `yaml:"device_type,omitempty"`
	RouteFlags                          []scalar       `yaml:"route_flags,omitempty"`
	CallbackFlags                       []scalar       `yaml:"callback_flags,omitempty"`
	Format                              formatDef      `yaml:"format,omitempty"`
	AllowPrivilegedMediaPlaybackCapture bool           `yaml:"allow_privileged_media_playback_capture,omitempty"`
	VoiceCommunicationCaptureAllowed    bool           `yaml:"voice_communication_capture_allowed,omitempty"`
	Criteria                            []criterionDef `yaml:"criteria,omitempty"`
}

type formatDef struct {
	SampleRate  uint32 `yaml:"sample_rate,omitempty"`
	Format      uint32 `yaml:"format,omitempty"`
	ChannelMask uint32 `yaml:"channel_mask,omitempty"`
}

type criterionDef struct {
	Field   scalar `yaml:"field"`
	Value   scalar `yaml:"value"`
	Exclude bool   `yaml:"exclude,omitempty"`
}

// scalar is a YAML scalar kept as text, with its position.
type scalar struct {
	Value  string
	Line   int
	Column int
}

func (s *scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar value", n.Line)
	}
	*s = scalar{Value: n.Value, Line: n.Line, Column: n.Column}
	return nil
}

func (s scalar) MarshalYAML() (interface{}, error) {
	n := &yaml.Node{Kind: yaml.ScalarNode, Value: s.Value}
	switch s.Value {
	case "", "~", "null", "Null", "NULL":
		n.Style = yaml.DoubleQuotedStyle
	}
	return n, nil
}

func (s scalar) IsZero() bool {
	return s.Value == ""
}

func (s scalar) errorf(path, format string, args ...any) *ParseError {
	return &ParseError{
		FilePath: path,
		Line:     s.Line,
		Column:   s.Column,
		Message:  fmt.Sprintf(format, args...),
	}
}

func (d *mixDef) toMix(path string, index int) (*mix.Mix, error) {
	if d.RegistrationID.Value == "" {
		return nil, &ParseError{FilePath: path, Line: d.Type.Line, Message: fmt.Sprintf("mix %d: registration_id is required", index)}
	}

	m := &mix.Mix{
		RegistrationID: d.RegistrationID.Value,
		Format: mix.Format{
			SampleRate:  d.Format.SampleRate,
			Format:      d.Format.Format,
			ChannelMask: d.Format.ChannelMask,
		},
		AllowPrivilegedMediaPlaybackCapture: d.AllowPrivilegedMediaPlaybackCapture,
		VoiceCommunicationCaptureAllowed:    d.VoiceCommunicationCaptureAllowed,
	}

	t, ok := mix.ParseType(d.Type.Value)
	if !ok {
		n, err := strconv.ParseInt(d.Type.Value, 0, 32)
		if err != nil {
			return nil, d.Type.errorf(path, "unknown mix type %q", d.Type.Value)
		}
		t = mix.Type(n)
	}
	m.Type = t

	if !d.DeviceType.IsZero() {
		dt, ok := mix.ParseDeviceType(d.DeviceType.Value)
		if !ok {
			return nil, d.DeviceType.errorf(path, "unknown device type %q", d.DeviceType.Value)
		}
		m.DeviceType = dt
	}

	for _, f := range d.RouteFlags {
		flag, ok := mix.ParseRouteFlag(f.Value)
		if !ok {
			n, err := strconv.ParseUint(f.Value, 0, 32)
			if err != nil {
				return nil, f.errorf(path, "unknown route flag %q", f.Value)
			}
			flag = mix.RouteFlags(n)
		}
		m.RouteFlags |= flag
	}

	for _, f := range d.CallbackFlags {
		switch f.Value {
		case "notify_activity":
			m.CallbackFlags |= mix.CallbackNotifyActivity
		default:
			n, err := strconv.ParseUint(f.Value, 0, 32)
			if err != nil {
				return nil, f.errorf(path, "unknown callback flag %q", f.Value)
			}
			m.CallbackFlags |= mix.CallbackFlags(n)
		}
	}

	for _, cd := range d.Criteria {
		c, err := cd.toCriterion(path)
		if err != nil {
			return nil, err
		}
		m.Criteria = append(m.Criteria, c)
	}

	return m, nil
}

func (cd criterionDef) toCriterion(path string) (mix.Criterion, error) {
	v := cd.Value.Value

	field, ok := mix.ParseField(cd.Field.Value)
	if !ok {
		bits, err := strconv.ParseUint(cd.Field.Value, 0, 16)
		if err != nil {
			return mix.Criterion{}, cd.Field.errorf(path, "unknown criterion field %q", cd.Field.Value)
		}
		raw, err := parseInt32(v)
		if err != nil {
			return mix.Criterion{}, cd.Value.errorf(path, "invalid value %q", v)
		}
		rule := mix.Rule(bits)
		if cd.Exclude {
			rule |= mix.RuleExclusionMask
		}
		return mix.CriterionFromRule(rule, raw), nil
	}

	var value mix.Value
	switch field {
	case mix.FieldUsage:
		u, ok := mix.ParseUsage(v)
		if !ok {
			return mix.Criterion{}, cd.Value.errorf(path, "unknown usage %q", v)
		}
		value = u
	case mix.FieldCapturePreset:
		s, ok := mix.ParseSource(v)
		if !ok {
			return mix.Criterion{}, cd.Value.errorf(path, "unknown source %q", v)
		}
		value = s
	case mix.FieldUID:
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return mix.Criterion{}, cd.Value.errorf(path, "invalid uid %q", v)
		}
		value = mix.UID(n)
	case mix.FieldUserID:
		n, err := strconv.ParseInt(v, 0, 32)
		if err != nil {
			return mix.Criterion{}, cd.Value.errorf(path, "invalid user id %q", v)
		}
		value = mix.UserID(n)
	case mix.FieldSessionID:
		n, err := strconv.ParseInt(v, 0, 32)
		if err != nil {
			return mix.Criterion{}, cd.Value.errorf(path, "invalid session id %q", v)
		}
		value = mix.SessionID(n)
	}

	return mix.Criterion{Value: value, Exclude: cd.Exclude}, nil
}

// parseInt32 accepts signed values and unsigned 32-bit values.
func parseInt32(s string) (int32, error) {
	if n, err := strconv.ParseInt(s, 0, 32); err == nil {
		return int32(n), nil
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return int32(uint32(n)), nil
}

func fromMix(m *mix.Mix) mixDef {
	d := mixDef{
		RegistrationID: scalar{Value: m.RegistrationID},
		Format: formatDef{
			SampleRate:  m.Format.SampleRate,
			Format:      m.Format.Format,
			ChannelMask: m.Format.ChannelMask,
		},
		AllowPrivilegedMediaPlaybackCapture: m.AllowPrivilegedMediaPlaybackCapture,
		VoiceCommunicationCaptureAllowed:    m.VoiceCommunicationCaptureAllowed,
	}

	switch m.Type {
	case mix.TypePlayers, mix.TypeRecorders:
		d.Type = scalar{Value: m.Type.String()}
	default:
		d.Type = scalar{Value: strconv.FormatInt(int64(m.Type), 10)}
	}

	if m.DeviceType != mix.DeviceNone {
		d.DeviceType = scalar{Value: m.DeviceType.String()}
	}

	flags := m.RouteFlags
	for _, named := range []struct {
		flag mix.RouteFlags
		name string
	}{
		{mix.RouteRender, "render"},
		{mix.RouteLoopBack, "loop_back"},
		{mix.RouteDisallowsPreferredDevice, "disallows_preferred_device"},
	} {
		if flags&named.flag != 0 {
			d.RouteFlags = append(d.RouteFlags, scalar{Value: named.name})
			flags &^= named.flag
		}
	}
	if flags != 0 {
		d.RouteFlags = append(d.RouteFlags, scalar{Value: fmt.Sprintf("0x%x", uint32(flags))})
	}

	callbacks := m.CallbackFlags
	if callbacks.NotifiesActivity() {
		d.CallbackFlags = append(d.CallbackFlags, scalar{Value: "notify_activity"})
		callbacks &^= mix.CallbackNotifyActivity
	}
	if callbacks != 0 {
		d.CallbackFlags = append(d.CallbackFlags, scalar{Value: fmt.Sprintf("0x%x", uint32(callbacks))})
	}

	for _, c := range m.Criteria {
		d.Criteria = append(d.Criteria, fromCriterion(c))
	}

	return d
}

func fromCriterion(c mix.Criterion) criterionDef {
	cd := criterionDef{Exclude: c.IsExcludeCriterion()}

	switch v := c.Value.(type) {
	case mix.Usage:
		cd.Field = scalar{Value: mix.FieldUsage.String()}
		cd.Value = scalar{Value: v.String()}
	case mix.Source:
		cd.Field = scalar{Value: mix.FieldCapturePreset.String()}
		cd.Value = scalar{Value: v.String()}
	case mix.UID:
		cd.Field = scalar{Value: mix.FieldUID.String()}
		cd.Value = scalar{Value: strconv.FormatUint(uint64(v), 10)}
	case mix.UserID:
		cd.Field = scalar{Value: mix.FieldUserID.String()}
		cd.Value = scalar{Value: strconv.FormatInt(int64(v), 10)}
	case mix.SessionID:
		cd.Field = scalar{Value: mix.FieldSessionID.String()}
		cd.Value = scalar{Value: strconv.FormatInt(int64(v), 10)}
	default:
		cd.Field = scalar{Value: fmt.Sprintf("0x%x", uint32(c.Rule()&^mix.RuleExclusionMask))}
		cd.Value = scalar{Value: strconv.FormatInt(int64(c.RawValue()), 10)}
	}

	return cd
}
