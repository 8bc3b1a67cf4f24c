package entity

type AssetClass int

const (
	AssetClassMapGeometry AssetClass = iota + 1
	AssetClassNavigationData
)

func (c AssetClass) String() string {
	return [...]string{"", "map-geometry", "navigation-data"}[c]
}

// AssetFile is a deployable file found in an extraction tree.
type AssetFile struct {
	Path  string
	Name  string // Base name of Path
	Class AssetClass
}

// Ownership is a numeric (uid, gid) pair applied to files of one destination tree.
type Ownership struct {
	UID int
	GID int
}
