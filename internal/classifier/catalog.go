package classifier

import (
	"strings"

	"github.com/nao1215/surveilscope/internal/model"
)

// APIInfo is the category and severity of a fingerprinting-relevant browser API.
type APIInfo struct {
	Category string
	Severity model.Severity
}

// apiCatalog maps attribute identifiers, as reported by the page hook layer,
// to their category and severity.
var apiCatalog = map[string]APIInfo{
	"navigator.userAgent":           {"browser", model.SeverityHigh},
	"navigator.platform":            {"system", model.SeverityHigh},
	"navigator.language":            {"locale", model.SeverityMedium},
	"navigator.languages":           {"locale", model.SeverityMedium},
	"navigator.hardwareConcurrency": {"hardware", model.SeverityHigh},
	"navigator.deviceMemory":        {"hardware", model.SeverityHigh},
	"navigator.maxTouchPoints":      {"input", model.SeverityMedium},
	"navigator.cookieEnabled":       {"browser", model.SeverityLow},
	"navigator.onLine":              {"network", model.SeverityLow},
	"navigator.doNotTrack":          {"privacy", model.SeverityLow},
	"navigator.productSub":          {"browser", model.SeverityMedium},
	"navigator.vendor":              {"browser", model.SeverityMedium},
	"navigator.vendorSub":           {"browser", model.SeverityMedium},
	"navigator.oscpu":               {"system", model.SeverityHigh},
	"navigator.buildID":             {"browser", model.SeverityHigh},
	"navigator.getGamepads":         {"hardware", model.SeverityMedium},
	"navigator.getBattery":          {"hardware", model.SeverityHigh},

	"screen.width":       {"display", model.SeverityHigh},
	"screen.height":      {"display", model.SeverityHigh},
	"screen.availWidth":  {"display", model.SeverityHigh},
	"screen.availHeight": {"display", model.SeverityHigh},
	"screen.colorDepth":  {"display", model.SeverityHigh},
	"screen.pixelDepth":  {"display", model.SeverityHigh},
	"screen.orientation": {"display", model.SeverityMedium},

	"canvas.toDataURL":    {"canvas", model.SeverityHigh},
	"canvas.getImageData": {"canvas", model.SeverityHigh},

	"webgl.UNMASKED_VENDOR_WEBGL":   {"webgl", model.SeverityHigh},
	"webgl.UNMASKED_RENDERER_WEBGL": {"webgl", model.SeverityHigh},

	"audio.AudioContext":               {"audio", model.SeverityHigh},
	"timing.performance.now":           {"timing", model.SeverityMedium},
	"timing.requestAnimationFrame":     {"cpu-benchmarking", model.SeverityMedium},
	"media.enumerateDevices":           {"media", model.SeverityHigh},
	"fonts.check":                      {"fonts", model.SeverityHigh},
	"timezone.getTimezoneOffset":       {"timezone", model.SeverityMedium},
	"network.connection.effectiveType": {"network", model.SeverityMedium},
	"network.RTCPeerConnection":        {"network", model.SeverityHigh},
	"privacy.clipboard.readText":       {"privacy", model.SeverityCritical},
	"sensors.Accelerometer":            {"sensors", model.SeverityHigh},
	"sensors.Gyroscope":                {"sensors", model.SeverityHigh},

	"location.geolocation.getCurrentPosition": {"location", model.SeverityCritical},
}

// prefixCatalog covers attribute families whose members are not listed individually.
var prefixCatalog = []struct {
	prefix string
	info   APIInfo
}{
	{"webgl.", APIInfo{"webgl", model.SeverityMedium}},
	{"canvas.", APIInfo{"canvas", model.SeverityHigh}},
	{"screen.", APIInfo{"display", model.SeverityMedium}},
	{"navigator.", APIInfo{"browser", model.SeverityMedium}},
	{"sensors.", APIInfo{"sensors", model.SeverityHigh}},
}

// LookupAPI returns the catalog entry for an attribute identifier, falling
// back to its family prefix. It returns false for unknown attributes.
func LookupAPI(attribute string) (APIInfo, bool) {
	if info, ok := apiCatalog[attribute]; ok {
		return info, true
	}
	for _, p := range prefixCatalog {
		if strings.HasPrefix(attribute, p.prefix) {
			return p.info, true
		}
	}
	return APIInfo{}, false
}
