package tenancy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// WildcardPermission is the single token emitted for owners. Its presence in
// a flattened list satisfies every permission check.
const WildcardPermission = "*"

const (
	defaultSection = "home"
	defaultAction  = "view"
)

// SectionPermissions lists the actions granted within one dashboard section
type SectionPermissions struct {
	Section string
	Actions []string
}

// Permissions is the canonical in-memory permission map (section -> actions).
// It is an ordered list so that flattening follows insertion order.
type Permissions []SectionPermissions

// DefaultPermissions is the minimal grant given to staff whose stored
// permission field is absent or unusable.
func DefaultPermissions() Permissions {
	return Permissions{{Section: defaultSection, Actions: []string{defaultAction}}}
}

// ownerSections and ownerActions make up the full owner permission set
var (
	ownerSections = []string{
		"home", "dashboard", "orders", "products", "customers", "pos",
		"storefront", "finance", "reports", "staff", "settings",
	}
	ownerActions = []string{"view", "create", "edit", "delete"}
)

// DefaultOwnerPermissions returns the full permission set granted to owners
// and support sessions.
func DefaultOwnerPermissions() Permissions {
	perms := make(Permissions, 0, len(ownerSections))
	for _, section := range ownerSections {
		perms = append(perms, SectionPermissions{
			Section: section,
			Actions: append([]string(nil), ownerActions...),
		})
	}
	return perms
}

// Actions returns the actions granted for section
func (p Permissions) Actions(section string) []string {
	for _, sp := range p {
		if sp.Section == section {
			return sp.Actions
		}
	}
	return nil
}

// Clone returns a deep copy
func (p Permissions) Clone() Permissions {
	if p == nil {
		return nil
	}
	out := make(Permissions, len(p))
	for i, sp := range p {
		out[i] = SectionPermissions{
			Section: sp.Section,
			Actions: append([]string(nil), sp.Actions...),
		}
	}
	return out
}

// add appends action to section, creating the section on first sight
func (p Permissions) add(section, action string) Permissions {
	for i := range p {
		if p[i].Section == section {
			p[i].Actions = append(p[i].Actions, action)
			return p
		}
	}
	return append(p, SectionPermissions{Section: section, Actions: []string{action}})
}

// MarshalJSON encodes the permissions as a JSON object, keeping section order
func (p Permissions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, sp := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(sp.Section)
		if err != nil {
			return nil, err
		}
		actions := sp.Actions
		if actions == nil {
			actions = []string{}
		}
		val, err := json.Marshal(actions)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a section -> actions object, keeping section order
func (p *Permissions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = nil
		return nil
	}
	perms, err := decodeSections(data)
	if err != nil {
		return err
	}
	*p = perms
	return nil
}

// RawPermissionsKind tags the shape a stored permission field was found in
type RawPermissionsKind int

const (
	// RawPermissionsAbsent means the field was missing or null
	RawPermissionsAbsent RawPermissionsKind = iota
	// RawPermissionsList means an array of "section_action" strings
	RawPermissionsList
	// RawPermissionsSections means a nested {section: [action]} object
	RawPermissionsSections
	// RawPermissionsInvalid means any other shape (scalar, boolean, ...)
	RawPermissionsInvalid
)

// RawPermissions is the permission field exactly as read from the store.
// Normalize turns it into the canonical Permissions shape.
type RawPermissions struct {
	Kind     RawPermissionsKind
	List     []string
	Sections Permissions
}

// RawPermissionsFromList builds a list-shaped raw value
func RawPermissionsFromList(tokens ...string) RawPermissions {
	return RawPermissions{Kind: RawPermissionsList, List: tokens}
}

// RawPermissionsFromSections builds an object-shaped raw value
func RawPermissionsFromSections(perms Permissions) RawPermissions {
	return RawPermissions{Kind: RawPermissionsSections, Sections: perms}
}

// ParseRawPermissions classifies a stored JSON permission field. It never
// fails: unreadable input is reported as RawPermissionsInvalid.
func ParseRawPermissions(data []byte) RawPermissions {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return RawPermissions{Kind: RawPermissionsAbsent}
	}

	switch data[0] {
	case '[':
		var items []any
		if err := json.Unmarshal(data, &items); err != nil {
			return RawPermissions{Kind: RawPermissionsInvalid}
		}
		tokens := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				tokens = append(tokens, s)
			}
		}
		return RawPermissions{Kind: RawPermissionsList, List: tokens}
	case '{':
		perms, err := decodeSections(data)
		if err != nil {
			return RawPermissions{Kind: RawPermissionsInvalid}
		}
		return RawPermissions{Kind: RawPermissionsSections, Sections: perms}
	default:
		return RawPermissions{Kind: RawPermissionsInvalid}
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (r *RawPermissions) UnmarshalJSON(data []byte) error {
	*r = ParseRawPermissions(data)
	return nil
}

// MarshalJSON writes the raw value back in its original shape
func (r RawPermissions) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RawPermissionsList:
		if r.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(r.List)
	case RawPermissionsSections:
		return r.Sections.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

// Normalize returns the canonical permission map:
//   - absent or invalid shapes yield DefaultPermissions
//   - "section_action" lists are split on the first underscore and grouped;
//     tokens without an underscore are dropped, and an empty result falls
//     back to DefaultPermissions
//   - objects are used as-is
func (r RawPermissions) Normalize() Permissions {
	switch r.Kind {
	case RawPermissionsList:
		var perms Permissions
		for _, token := range r.List {
			idx := strings.Index(token, "_")
			if idx < 0 {
				continue
			}
			perms = perms.add(token[:idx], token[idx+1:])
		}
		if len(perms) == 0 {
			return DefaultPermissions()
		}
		return perms
	case RawPermissionsSections:
		if r.Sections == nil {
			return Permissions{}
		}
		return r.Sections.Clone()
	default:
		return DefaultPermissions()
	}
}

// NormalizePermissions is shorthand for ParseRawPermissions(data).Normalize()
func NormalizePermissions(data []byte) Permissions {
	return ParseRawPermissions(data).Normalize()
}

// Flatten turns the permission map into "section_action" tokens, in section
// then action order. Owners get the wildcard token only.
func Flatten(perms Permissions, role Role) []string {
	if role.IsOwner() {
		return []string{WildcardPermission}
	}
	tokens := make([]string, 0)
	for _, sp := range perms {
		for _, action := range sp.Actions {
			tokens = append(tokens, sp.Section+"_"+action)
		}
	}
	return tokens
}

// PermissionSet answers membership questions over a flattened permission list
type PermissionSet struct {
	role   Role
	tokens []string
	index  map[string]struct{}
}

// NewPermissionSet flattens perms for role
func NewPermissionSet(perms Permissions, role Role) PermissionSet {
	tokens := Flatten(perms, role)
	index := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		index[t] = struct{}{}
	}
	return PermissionSet{role: role, tokens: tokens, index: index}
}

// Tokens returns the flattened permission list
func (s PermissionSet) Tokens() []string {
	return append([]string(nil), s.tokens...)
}

func (s PermissionSet) unrestricted() bool {
	if s.role.IsOwner() {
		return true
	}
	_, ok := s.index[WildcardPermission]
	return ok
}

// Has reports whether token is granted
func (s PermissionSet) Has(token string) bool {
	if s.unrestricted() {
		return true
	}
	_, ok := s.index[token]
	return ok
}

// HasAny reports whether at least one token is granted. An empty list is
// satisfied.
func (s PermissionSet) HasAny(tokens ...string) bool {
	if s.unrestricted() || len(tokens) == 0 {
		return true
	}
	for _, t := range tokens {
		if _, ok := s.index[t]; ok {
			return true
		}
	}
	return false
}

// HasAll reports whether every token is granted
func (s PermissionSet) HasAll(tokens ...string) bool {
	if s.unrestricted() {
		return true
	}
	for _, t := range tokens {
		if _, ok := s.index[t]; !ok {
			return false
		}
	}
	return true
}

// decodeSections streams a JSON object so that key order is preserved.
// Values that are not arrays are skipped; non-string actions are dropped.
func decodeSections(data []byte) (Permissions, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("permissions: expected object, got %v", tok)
	}

	perms := Permissions{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		section, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("permissions: unexpected key %v", keyTok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		var items []any
		if err := json.Unmarshal(value, &items); err != nil {
			continue
		}
		actions := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				actions = append(actions, s)
			}
		}
		perms = append(perms, SectionPermissions{Section: section, Actions: actions})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return perms, nil
}
