package domain

import dErrors "github.com/spwotton/sms/pkg/domain-errors"

// Relationship categorizes how a contact relates to the hub owner.
type Relationship string

const (
	RelationshipParent         Relationship = "parent"
	RelationshipChild          Relationship = "child"
	RelationshipSibling        Relationship = "sibling"
	RelationshipSpouse         Relationship = "spouse"
	RelationshipFriend         Relationship = "friend"
	RelationshipExtendedFamily Relationship = "extended_family"
	RelationshipOther          Relationship = "other"
)

var validRelationships = map[Relationship]bool{
	RelationshipParent:         true,
	RelationshipChild:          true,
	RelationshipSibling:        true,
	RelationshipSpouse:         true,
	RelationshipFriend:         true,
	RelationshipExtendedFamily: true,
	RelationshipOther:          true,
}

// ParseRelationship constructs a Relationship from external input.
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseRelationship(s string) (Relationship, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "relationship cannot be empty")
	}
	r := Relationship(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid relationship")
	}
	return r, nil
}

func (r Relationship) IsValid() bool {
	return validRelationships[r]
}

func (r Relationship) String() string {
	return string(r)
}
