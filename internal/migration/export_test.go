package migration

var (
	CheckTable     = check
	LatestVersion  = latestVersion
	AppliedVersion = appliedVersion
)
