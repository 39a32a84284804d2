// Package model holds the read-only model definitions and the document
// state values the reducer folds commits into.
package model

import (
	"encoding/json"
)

// AccountRelationType governs how many documents a controller may create
// for a model and whether a uniqueness key is required.
type AccountRelationType string

const (
	AccountRelationNone   AccountRelationType = "none"
	AccountRelationSingle AccountRelationType = "single"
	AccountRelationList   AccountRelationType = "list"
	AccountRelationSet    AccountRelationType = "set"
)

// AccountRelation is the per-model account relation policy. Fields names the
// set-semantics fields and is only used by the set relation.
type AccountRelation struct {
	Type   AccountRelationType `json:"type"`
	Fields []string            `json:"fields,omitempty"`
}

// RelationType distinguishes account relations from document relations.
type RelationType string

const (
	RelationAccount  RelationType = "account"
	RelationDocument RelationType = "document"
)

// Relation declares that a content field references another stream or an
// account. Model is the expected model stream id for document relations.
type Relation struct {
	Type  RelationType `json:"type"`
	Model string       `json:"model,omitempty"`
}

// Definition is a model definition as supplied by the Context.
type Definition struct {
	Version         string              `json:"version,omitempty"`
	Name            string              `json:"name"`
	Description     string              `json:"description,omitempty"`
	AccountRelation AccountRelation     `json:"accountRelation"`
	Schema          json.RawMessage     `json:"schema"`
	Relations       map[string]Relation `json:"relations,omitempty"`
	ImmutableFields []string            `json:"immutableFields,omitempty"`
	Interface       bool                `json:"interface,omitempty"`
	Implements      []string            `json:"implements,omitempty"`
}

// UniqueFields returns the set-semantics fields, in declaration order.
func (d *Definition) UniqueFields() []string {
	if d.AccountRelation.Type != AccountRelationSet {
		return nil
	}
	return d.AccountRelation.Fields
}

// SupportsImmutableFields reports whether the definition version knows
// about immutable fields. Version 1.0 definitions predate them.
func (d *Definition) SupportsImmutableFields() bool {
	return d.Version != "1.0"
}

// SupportsInterfaces reports whether implements is honoured for the
// definition. Like immutable fields, interfaces arrived after 1.0.
func (d *Definition) SupportsInterfaces() bool {
	return d.Version != "1.0"
}

// ParseDefinition decodes a JSON model definition.
func ParseDefinition(b []byte) (*Definition, error) {
	var d Definition
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
