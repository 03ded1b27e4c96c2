package config

func (ae *AdminEntry) Serialize() map[string]any {
	record := make(map[string]any)
	if ae.Unix != "" {
		record["unix"] = ae.Unix
	} else {
		record["host"] = ae.Host
		record["port"] = ae.Port
	}
	return record
}

func (s *Settings) Serialize() map[string]any {
	record := map[string]any{
		"procfile":      s.Procfile,
		"env":           s.EnvFile,
		"color":         s.Color,
		"maxLineLength": s.MaxLineLength,
		"verbose":       s.Verbose,
	}
	if s.Admin != nil {
		record["admin"] = s.Admin.Serialize()
	} else {
		record["admin"] = false
	}
	return record
}
