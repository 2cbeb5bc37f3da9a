package signatures

import (
	"shrike/core"
	"shrike/detect"
)

// Thresholds separating installers and updaters from wiper and ransomware
// style file churn.
const (
	massFileWriteThreshold  = 40
	massFileDeleteThreshold = 20
)

var massFileDef = detect.Definition{
	Name:             "mass_file_activity",
	Description:      "Modifies or deletes an unusually large number of files",
	Severity:         3,
	Categories:       []string{"ransomware"},
	TTPs:             []string{"T1486"},
	FilterCategories: []string{"file"},
}

// massFileActivity tallies destructive file calls as they stream past and
// issues its verdict once the analysis is complete.
type massFileActivity struct {
	*detect.Base
	writes  int
	deletes int
}

func (s *massFileActivity) Definition() detect.Definition { return massFileDef }

func (s *massFileActivity) OnCall(call *core.Call) (detect.Verdict, error) {
	if !call.Status {
		return detect.Continue, nil
	}
	switch call.API {
	case "NtWriteFile":
		s.writes++
	case "DeleteFileW", "NtDeleteFile", "MoveFileWithProgressW":
		s.deletes++
	}
	return detect.Continue, nil
}

func (s *massFileActivity) OnComplete() error {
	if s.writes < massFileWriteThreshold && s.deletes < massFileDeleteThreshold {
		return nil
	}
	s.Mark(map[string]interface{}{
		"files_written": s.writes,
		"files_deleted": s.deletes,
	})
	s.Match()
	return nil
}

func init() {
	detect.Register(massFileDef, func(b *detect.Base) detect.Signature {
		return &massFileActivity{Base: b}
	})
}
