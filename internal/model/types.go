package model

import (
	"path"
	"strings"
	"time"
)

type Asset struct {
	ID          string
	Name        string
	AccountID   string
	ContentType string
	Data        []byte
	Seq         int64
	CreatedAt   int64
}

var archiveExts = map[string]bool{".zip": true, ".jar": true}

// IsArchive reports whether the asset is a code archive scanned by resolvers.
func (a Asset) IsArchive() bool {
	return archiveExts[strings.ToLower(path.Ext(a.Name))]
}

type ResourceKind string

const (
	KindSchema ResourceKind = "schema"
	KindTable  ResourceKind = "table"
	KindColumn ResourceKind = "column"
	KindAsset  ResourceKind = "asset"
)

type Op string

const (
	OpCreate   Op = "create"
	OpUpdate   Op = "update"
	OpDelete   Op = "delete"
	OpEvaluate Op = "evaluate"
	OpUpload   Op = "upload"
	OpEmpty    Op = "empty"
)

// Usage counts operations an account performed on its resources. It
// survives pruning in the audit record.
type Usage struct {
	SchemaCreate   int64 `json:"schemaCreateCount"`
	SchemaUpdate   int64 `json:"schemaUpdateCount"`
	SchemaDelete   int64 `json:"schemaDeleteCount"`
	SchemaEvaluate int64 `json:"schemaEvaluateCount"`

	TableCreate   int64 `json:"tableCreateCount"`
	TableUpdate   int64 `json:"tableUpdateCount"`
	TableDelete   int64 `json:"tableDeleteCount"`
	TableUpload   int64 `json:"tableUploadCount"`
	TableEvaluate int64 `json:"tableEvaluateCount"`
	TableEmpty    int64 `json:"tableEmptyCount"`

	ColumnCreate   int64 `json:"columnCreateCount"`
	ColumnUpdate   int64 `json:"columnUpdateCount"`
	ColumnDelete   int64 `json:"columnDeleteCount"`
	ColumnEvaluate int64 `json:"columnEvaluateCount"`

	AssetUpload int64 `json:"assetUploadCount"`
	AssetDelete int64 `json:"assetDeleteCount"`
}

// Add increments the counter for kind/op. Unknown pairs are ignored and
// reported as false.
func (u *Usage) Add(kind ResourceKind, op Op) bool {
	var c *int64
	switch kind {
	case KindSchema:
		switch op {
		case OpCreate:
			c = &u.SchemaCreate
		case OpUpdate:
			c = &u.SchemaUpdate
		case OpDelete:
			c = &u.SchemaDelete
		case OpEvaluate:
			c = &u.SchemaEvaluate
		}
	case KindTable:
		switch op {
		case OpCreate:
			c = &u.TableCreate
		case OpUpdate:
			c = &u.TableUpdate
		case OpDelete:
			c = &u.TableDelete
		case OpUpload:
			c = &u.TableUpload
		case OpEvaluate:
			c = &u.TableEvaluate
		case OpEmpty:
			c = &u.TableEmpty
		}
	case KindColumn:
		switch op {
		case OpCreate:
			c = &u.ColumnCreate
		case OpUpdate:
			c = &u.ColumnUpdate
		case OpDelete:
			c = &u.ColumnDelete
		case OpEvaluate:
			c = &u.ColumnEvaluate
		}
	case KindAsset:
		switch op {
		case OpUpload, OpCreate:
			c = &u.AssetUpload
		case OpDelete:
			c = &u.AssetDelete
		}
	}
	if c == nil {
		return false
	}
	*c++
	return true
}

// AccountRecord is the audit snapshot written for every pruned account.
type AccountRecord struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Session      string     `json:"session"`
	CreationTime time.Time  `json:"creationTime"`
	AccessTime   time.Time  `json:"accessTime"`
	ChangeTime   time.Time  `json:"changeTime"`
	DeletionTime *time.Time `json:"deletionTime"`
	Schemas      int        `json:"schemas"`
	Assets       int        `json:"assets"`
	Usage
}
