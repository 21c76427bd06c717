package ldmodel

import "github.com/launchdarkly/go-sdk-common/v3/ldvalue"

// UserAttribute names one of the built-in or custom attributes a clause or bucketBy setting
// can reference.
type UserAttribute string

// Built-in user attribute names, matching the wire protocol's JSON field names.
const (
	KeyAttribute       UserAttribute = "key"
	SecondaryAttribute UserAttribute = "secondary"
	IPAttribute        UserAttribute = "ip"
	CountryAttribute   UserAttribute = "country"
	EmailAttribute     UserAttribute = "email"
	FirstNameAttribute UserAttribute = "firstName"
	LastNameAttribute  UserAttribute = "lastName"
	AvatarAttribute    UserAttribute = "avatar"
	NameAttribute      UserAttribute = "name"
	AnonymousAttribute UserAttribute = "anonymous"
)

// User describes the subject of a flag evaluation. The only required field is Key.
type User struct {
	Key       string
	Secondary string
	HasSecondary bool
	IP        string
	Country   string
	Email     string
	FirstName string
	LastName  string
	Avatar    string
	Name      string
	Anonymous bool
	Custom    map[string]ldvalue.Value
}

// GetAttribute returns the value of one of the user's attributes, or ldvalue.Null() if the
// user has no value for it. Unknown attribute names are looked up in Custom.
func (u User) GetAttribute(attr UserAttribute) ldvalue.Value {
	switch attr {
	case KeyAttribute:
		return ldvalue.String(u.Key)
	case SecondaryAttribute:
		if u.HasSecondary {
			return ldvalue.String(u.Secondary)
		}
		return ldvalue.Null()
	case IPAttribute:
		return stringOrNull(u.IP)
	case CountryAttribute:
		return stringOrNull(u.Country)
	case EmailAttribute:
		return stringOrNull(u.Email)
	case FirstNameAttribute:
		return stringOrNull(u.FirstName)
	case LastNameAttribute:
		return stringOrNull(u.LastName)
	case AvatarAttribute:
		return stringOrNull(u.Avatar)
	case NameAttribute:
		return stringOrNull(u.Name)
	case AnonymousAttribute:
		return ldvalue.Bool(u.Anonymous)
	default:
		if u.Custom == nil {
			return ldvalue.Null()
		}
		if v, ok := u.Custom[string(attr)]; ok {
			return v
		}
		return ldvalue.Null()
	}
}

func stringOrNull(s string) ldvalue.Value {
	if s == "" {
		return ldvalue.Null()
	}
	return ldvalue.String(s)
}
