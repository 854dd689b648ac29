package registry

import (
	"fmt"
	"strings"
)

type CurvesFormula string

const (
	CurvesQuadratic   CurvesFormula = "QUADRATIC"
	CurvesLogarithmic CurvesFormula = "LOGARITHMIC"
)

func ParseCurvesFormula(raw string) (CurvesFormula, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(CurvesQuadratic):
		return CurvesQuadratic, nil
	case string(CurvesLogarithmic), "LOG":
		return CurvesLogarithmic, nil
	default:
		return "", fmt.Errorf("unknown curves formula %q (use QUADRATIC or LOGARITHMIC)", raw)
	}
}

// curvesContractsByChainID holds known curves deployments. Entries can be
// overridden per formula through the settings named by CurvesSettingKey.
var curvesContractsByChainID = map[int64]map[CurvesFormula]string{}

// CurvesSettingKey names the runtime setting that overrides a curves contract address.
func CurvesSettingKey(formula CurvesFormula) string {
	return "FORM_CURVES_" + string(formula) + "_ADDRESS"
}

func CurvesContract(chainID int64, formula CurvesFormula, override string) (string, bool) {
	if v := strings.TrimSpace(override); v != "" {
		return v, true
	}
	byFormula, ok := curvesContractsByChainID[chainID]
	if !ok {
		return "", false
	}
	addr, ok := byFormula[formula]
	return addr, ok && addr != ""
}
