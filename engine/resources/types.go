package resources

import "strings"

type AssetType int

/** @brief Asset types known to the pipeline. The set is closed. */
const (
	AssetTypeUnknown AssetType = iota
	/** @brief Material description plus its texture dependencies. */
	AssetTypeMaterial
	/** @brief Decoded or cooked image data. */
	AssetTypeTexture
	/** @brief Shader metadata. Only its texture requirements are consumed. */
	AssetTypeShader
)

var assetTypeNames = []string{"unknown", "material", "texture", "shader"}

func (t AssetType) String() string {
	if int(t) < len(assetTypeNames) {
		return assetTypeNames[t]
	}
	return "unknown"
}

func ParseAssetType(s string) AssetType {
	for i, n := range assetTypeNames {
		if strings.EqualFold(n, s) {
			return AssetType(i)
		}
	}
	return AssetTypeUnknown
}

// ParseEnum looks s up in names, case-insensitively.
func ParseEnum[E ~uint8](names []string, s string) (E, bool) {
	for i, n := range names {
		if strings.EqualFold(n, strings.TrimSpace(s)) {
			return E(i), true
		}
	}
	return 0, false
}

func enumName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return "Invalid"
}
