package tables

// TableID document collection ID
type TableID int

const (
	// TblResources table 'resource'
	TblResources TableID = iota

	// TblDatums table 'datum'
	TblDatums

	// TblRelocations table 'resource_relocation'
	TblRelocations
)

// SchemaName database scheme name
const SchemaName = "filestore"

// String stringer interface impl
func (tid TableID) String() string {
	return tableID2string[tid]
}

var tableID2string = map[TableID]string{
	TblResources:   "resource",
	TblDatums:      "datum",
	TblRelocations: "resource_relocation",
}
