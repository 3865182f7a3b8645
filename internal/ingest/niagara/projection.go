package niagara

// Select builds the selective-import projection of d: only the sections
// named in enabled are carried across, while the summary always gains the
// denormalised module/filesystem counts and the enabled-section list so
// dashboards can render counts without re-parsing the source file.
//
// Unknown section names are ignored. A nil or empty enabled list yields a
// summary-only import.
func (d *PlatformData) Select(enabled []string) *PlatformImport {
	imp := &PlatformImport{
		Summary: ImportSummary{
			Summary:         d.Summary,
			ModuleCount:     len(d.Modules),
			FilesystemCount: len(d.Filesystems),
			EnabledSections: []string{},
		},
	}

	for _, section := range enabled {
		switch section {
		case SectionModules:
			imp.Modules = d.Modules
		case SectionFilesystems:
			imp.Filesystems = d.Filesystems
		case SectionApplications:
			imp.Applications = d.Applications
		case SectionLicenses:
			imp.Licenses = d.Licenses
		default:
			continue
		}
		imp.Summary.EnabledSections = append(imp.Summary.EnabledSections, section)
	}

	return imp
}
