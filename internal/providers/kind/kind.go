// Package kind names the entity kinds migrato knows.
package kind

const (
	IblockType          = "iblock.type"
	Iblock              = "iblock.iblock"
	IblockProperty      = "iblock.property"
	IblockPropertyEnum  = "iblock.enum"
	IblockElementFilter = "iblock.elementfilter"
	UserField           = "userfield.field"
	UserFieldEnum       = "userfield.enum"
	PerfmonIndex        = "perfmon.index"
	URLRewriteRule      = "urlrewrite.rule"
)
