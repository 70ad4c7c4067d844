package resources

/** @brief The type of an import option value. */
type OptionType int

const (
	OptionTypeBool OptionType = iota
	OptionTypeInt
	OptionTypeFloat
	OptionTypeString
	OptionTypePath
)

/** @brief A single entry of an importer's option schema. */
type ImportOption struct {
	Name     string
	Type     OptionType
	Default  interface{}
	HintText string
}

/**
 * @brief The result of a successful importer invocation.
 */
type ImportOutput struct {
	// Per-platform sub-artifacts, appended to the destination name.
	PlatformVariants []string
	// Side files produced next to the main artifact.
	GeneratedFiles []string
	// Opaque metadata the registry persists into the side-car.
	Metadata map[string]interface{}
	// Dependencies the importer could not find. Only populated alongside
	// core.ErrMissingDependencies.
	MissingDependencies []string
}

/**
 * @brief The static capability record of an importer. All registered
 * importers declare one.
 */
type ImporterCapabilities struct {
	/** @brief Unique importer name, e.g. "image". */
	Name string
	/** @brief Human-readable name shown by the editor. */
	VisibleName string
	/** @brief Source extensions this importer recognizes, without dots. */
	RecognizedExtensions []string
	/** @brief Extension of the produced artifact, without dot. */
	SaveExtension string
	/** @brief The engine resource type this importer produces. */
	ResourceType string
	/** @brief Selection priority; highest wins for a contested extension. */
	Priority float64
	/** @brief Secondary ordering; lower imports first and wins priority ties. */
	ImportOrder int
	/** @brief Number of option presets; at least 1 (the default preset). */
	PresetCount int
	/** @brief Group file for many-to-one importers (atlases); "" otherwise. */
	OptionGroupFile string
}

/** @brief An importer registration: static capabilities plus behaviour. */
type Importer struct {
	ImporterCapabilities

	ImporterInterface
}

type ImporterInterface interface {
	// ImportOptions returns the option schema for a preset.
	ImportOptions(preset int) []ImportOption

	// OptionVisibility drives form-driven conditional options: whether an
	// option should be shown given the currently selected values.
	OptionVisibility(option string, selected map[string]interface{}) bool

	// ImportSettingsString contributes importer-private identity to the
	// registry settings hash. Change it when the artifact format changes.
	ImportSettingsString() string

	// AreImportSettingsValid reports whether a prior import of the path is
	// still usable. A false return triggers a reimport.
	AreImportSettingsValid(path ResourcePath) bool

	// Import converts sourceFile (a readable OS path) into the artifact at
	// savePath. savePath carries no extension; the importer appends its save
	// extension. On a dependency miss it fills MissingDependencies and
	// returns core.ErrMissingDependencies; any other error is fatal and the
	// resource is marked broken.
	Import(sourceFile, savePath string, options map[string]interface{}) (*ImportOutput, error)

	// ImportGroupFile processes many sources into one output. Importers
	// without group support return core.ErrUnavailable.
	ImportGroupFile(groupFile ResourcePath, sources map[string]map[string]interface{}) error
}

/**
 * @brief Default behaviour shared by importers. Embed it and override what
 * the importer actually supports.
 */
type DefaultImporterBehaviour struct{}

func (DefaultImporterBehaviour) ImportOptions(preset int) []ImportOption {
	return nil
}

func (DefaultImporterBehaviour) OptionVisibility(option string, selected map[string]interface{}) bool {
	return true
}

func (DefaultImporterBehaviour) ImportSettingsString() string {
	return ""
}

func (DefaultImporterBehaviour) AreImportSettingsValid(path ResourcePath) bool {
	return true
}

func (DefaultImporterBehaviour) ImportGroupFile(groupFile ResourcePath, sources map[string]map[string]interface{}) error {
	return errGroupUnavailable
}

// DefaultOptions flattens the schema of the given preset into a value map.
func DefaultOptions(imp *Importer, preset int) map[string]interface{} {
	opts := make(map[string]interface{})
	for _, o := range imp.ImportOptions(preset) {
		opts[o.Name] = o.Default
	}
	return opts
}
