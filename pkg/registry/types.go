package registry

import "time"

// View and table names.
const (
	ViewPackageVersions = "package_versions"
	ViewPackages        = "packages"
	ViewPopularPackages = "popular_packages"
	TableProfiles       = "profiles"
)

// PackageVersion is one published version of a package.
type PackageVersion struct {
	ID                 string    `json:"id" bson:"id"`
	PackageID          string    `json:"package_id" bson:"package_id"`
	PackageName        string    `json:"package_name" bson:"package_name"`
	Version            string    `json:"version" bson:"version"`
	SQL                string    `json:"sql" bson:"sql"`
	DescriptionMD      string    `json:"description_md" bson:"description_md"`
	ControlDescription string    `json:"control_description" bson:"control_description"`
	ControlRequires    string    `json:"control_requires" bson:"control_requires"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}

// Package is a package with its latest published version.
type Package struct {
	ID                 string    `json:"id" bson:"id"`
	PackageName        string    `json:"package_name" bson:"package_name"`
	Handle             string    `json:"handle" bson:"handle"`
	PartialName        string    `json:"partial_name" bson:"partial_name"`
	LatestVersion      string    `json:"latest_version" bson:"latest_version"`
	ControlDescription string    `json:"control_description" bson:"control_description"`
	Downloads          int64     `json:"downloads" bson:"downloads"`
	CreatedAt          time.Time `json:"created_at" bson:"created_at"`
}

// Profile types.
const (
	ProfileUser         = "user"
	ProfileOrganization = "organization"
)

// Profile is a publisher account or organization.
type Profile struct {
	ID           string    `json:"id" bson:"id"`
	Handle       string    `json:"handle" bson:"handle"`
	Type         string    `json:"type" bson:"type"`
	DisplayName  string    `json:"display_name" bson:"display_name"`
	Bio          string    `json:"bio" bson:"bio"`
	AvatarURL    string    `json:"avatar_url" bson:"avatar_url"`
	ContactEmail string    `json:"contact_email" bson:"contact_email"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// FullName joins a handle and a partial name into a package name.
func FullName(handle, partialName string) string {
	return handle + "-" + partialName
}
