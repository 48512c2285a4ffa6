package fbxbuilder

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mogaika/fbx"
	"github.com/mogaika/fbx/builders/bfbx73"
	"github.com/pkg/errors"
)

const FBX_VERSION = 7400
const FBX_CREATOR = "FBX SDK/FBX Plugins version 2020.2"

const (
	applicationVendor  = "Badger Tools"
	applicationName    = "badger_converter"
	applicationVersion = "1.0"
)

// fixed creation time and file id keep output byte-reproducible
var creationTime = time.Date(1970, time.January, 1, 10, 0, 0, 0, time.UTC)

var fileId = []byte{
	0x28, 0xb3, 0x2a, 0xeb, 0xb6, 0x24, 0xcc, 0xc2,
	0xbf, 0xc8, 0xb0, 0x2a, 0xa9, 0x2b, 0xfc, 0xf1}

// Y up, right handed, centimeters
var axisSettings = []struct {
	name  string
	value int32
}{
	{"UpAxis", 1}, {"UpAxisSign", 1},
	{"FrontAxis", 2}, {"FrontAxisSign", 1},
	{"CoordAxis", 0}, {"CoordAxisSign", 1},
	{"OriginalUpAxis", 1}, {"OriginalUpAxisSign", 1},
}

// FBXBuilder accumulates objects and connections of one FBX document.
// Ids start from a fixed base so output is reproducible.
type FBXBuilder struct {
	f     *fbx.FBX
	cache map[interface{}]interface{}
	id    int64
	// side files of zip bundle by path inside of archive
	sideFiles map[string][]byte

	document    *fbx.Node
	definitions *fbx.Node
	objects     *fbx.Node
	connections *fbx.Node
}

func NewFBXBuilder(filename string) *FBXBuilder {
	b := &FBXBuilder{
		f:           fbx.NewFBX(FBX_VERSION),
		cache:       make(map[interface{}]interface{}),
		id:          1000000,
		sideFiles:   make(map[string][]byte),
		objects:     bfbx73.Objects(),
		connections: bfbx73.Connections(),
	}
	b.document = bfbx73.Document(b.GenerateId(), "Scene", "Scene").AddNodes(
		bfbx73.Properties70().AddNodes(
			bfbx73.P("SourceObject", "object", "", ""),
			bfbx73.P("ActiveAnimStackName", "KString", "", "", ""),
		),
		bfbx73.RootNode(0),
	)
	b.definitions = b.newDefinitions()

	b.Root().AddNodes(
		headerExtension(filename),
		bfbx73.FileId(fileId),
		bfbx73.CreationTime(creationTime.Format("2006-01-02 15:04:05:000")),
		bfbx73.Creator(FBX_CREATOR),
		globalSettings(),
		bfbx73.Documents().AddNodes(bfbx73.Count(1), b.document),
		bfbx73.References(),
		b.definitions,
		b.objects,
		b.connections,
		bfbx73.Takes().AddNodes(bfbx73.Current("")),
	)
	return b
}

// applicationInfo is the Original/LastSaved compound of scene info
func applicationInfo(compound string) []*fbx.Node {
	str := func(name, value string) *fbx.Node {
		return bfbx73.P(compound+"|"+name, "KString", "", "", value)
	}
	return []*fbx.Node{
		bfbx73.P(compound, "Compound", "", ""),
		str("ApplicationVendor", applicationVendor),
		str("ApplicationName", applicationName),
		str("ApplicationVersion", applicationVersion),
		bfbx73.P(compound+"|DateTime_GMT", "DateTime", "", "", creationTime.Format("01/02/2006 15:04:05.000")),
	}
}

func headerExtension(filename string) *fbx.Node {
	info := bfbx73.Properties70().AddNodes(
		bfbx73.P("DocumentUrl", "KString", "Url", "", filename),
		bfbx73.P("SrcDocumentUrl", "KString", "Url", "", filename),
	)
	info.AddNodes(applicationInfo("Original")...)
	info.AddNodes(bfbx73.P("Original|FileName", "KString", "", "", filepath.Base(filename)))
	info.AddNodes(applicationInfo("LastSaved")...)

	meta := bfbx73.MetaData().AddNodes(bfbx73.Version(100))
	for _, name := range []string{"Title", "Subject", "Author", "Keywords", "Revision", "Comment"} {
		meta.AddNode(Node(name, ""))
	}

	t := creationTime
	return bfbx73.FBXHeaderExtension().AddNodes(
		bfbx73.FBXHeaderVersion(1003),
		bfbx73.FBXVersion(FBX_VERSION),
		bfbx73.EncryptionType(0),
		bfbx73.CreationTimeStamp().AddNodes(
			bfbx73.Version(1000),
			Node("Year", int32(t.Year())),
			Node("Month", int32(t.Month())),
			Node("Day", int32(t.Day())),
			Node("Hour", int32(t.Hour())),
			Node("Minute", int32(t.Minute())),
			Node("Second", int32(t.Second())),
			Node("Millisecond", int32(t.Nanosecond()/int(time.Millisecond))),
		),
		bfbx73.Creator(FBX_CREATOR),
		bfbx73.SceneInfo(ObjectName("GlobalInfo", "SceneInfo"), "UserData").AddNodes(
			bfbx73.Type("UserData"),
			bfbx73.Version(100),
			meta,
			info,
		),
	)
}

func globalSettings() *fbx.Node {
	props := bfbx73.Properties70()
	for _, a := range axisSettings {
		props.AddNode(bfbx73.P(a.name, "int", "Integer", "", a.value))
	}
	props.AddNodes(
		bfbx73.P("UnitScaleFactor", "double", "Number", "", float64(1)),
		bfbx73.P("OriginalUnitScaleFactor", "double", "Number", "", float64(1)),
		bfbx73.P("AmbientColor", "ColorRGB", "Color", "", float64(0), float64(0), float64(0)),
		pInt("TimeMode", "enum", "", 11),
		bfbx73.P("TimeSpanStart", "KTime", "Time", "", int64(0)),
		bfbx73.P("TimeSpanStop", "KTime", "Time", "", int64(TimeUnitsPerSecond)),
	)
	return bfbx73.GlobalSettings().AddNodes(bfbx73.Version(1000), props)
}

type propertyTemplate struct {
	objectType string
	class      string
	properties []*fbx.Node
}

func pInt(name, typ, label string, v int32) *fbx.Node { return bfbx73.P(name, typ, label, "", v) }

func pAnimated(name, typ string, v ...float64) *fbx.Node {
	values := make([]interface{}, len(v))
	for i := range v {
		values[i] = v[i]
	}
	return Node("P", append([]interface{}{name, typ, "", "A"}, values...)...)
}

func pTime(name string) *fbx.Node { return bfbx73.P(name, "KTime", "Time", "", int64(0)) }

// propertyTemplates are default property values of object types, readers
// fill properties missing on objects from them
func propertyTemplates() []propertyTemplate {
	return []propertyTemplate{
		{"Model", "FbxNode", []*fbx.Node{
			pInt("QuaternionInterpolate", "enum", "", 0),
			pInt("RotationActive", "bool", "", 0),
			pInt("InheritType", "enum", "", 0),
			pInt("Show", "bool", "", 1),
			pAnimated("Lcl Translation", "Lcl Translation", 0, 0, 0),
			pAnimated("Lcl Rotation", "Lcl Rotation", 0, 0, 0),
			pAnimated("Lcl Scaling", "Lcl Scaling", 1, 1, 1),
			pAnimated("Visibility", "Visibility", 1),
			pInt("Visibility Inheritance", "Visibility Inheritance", "", 1),
		}},
		{"Material", "FbxSurfacePhong", []*fbx.Node{
			bfbx73.P("ShadingModel", "KString", "", "", "Phong"),
			pInt("MultiLayer", "bool", "", 0),
			pAnimated("EmissiveColor", "Color", 0, 0, 0),
			pAnimated("EmissiveFactor", "Number", 1),
			pAnimated("AmbientColor", "Color", 0.2, 0.2, 0.2),
			pAnimated("AmbientFactor", "Number", 1),
			pAnimated("DiffuseColor", "Color", 1, 1, 1),
			pAnimated("DiffuseFactor", "Number", 1),
			pAnimated("SpecularColor", "Color", 0.2, 0.2, 0.2),
			pAnimated("SpecularFactor", "Number", 1),
		}},
		{"Texture", "FbxFileTexture", []*fbx.Node{
			pInt("TextureTypeUse", "enum", "", 0),
			pAnimated("Texture alpha", "Number", 1),
			pInt("CurrentMappingType", "enum", "", 0),
			pInt("WrapModeU", "enum", "", 0),
			pInt("WrapModeV", "enum", "", 0),
			pInt("UVSwap", "bool", "", 0),
			pInt("PremultiplyAlpha", "bool", "", 1),
			pInt("UseMaterial", "bool", "", 0),
			pInt("UseMipMap", "bool", "", 0),
		}},
		{"Video", "FbxVideo", []*fbx.Node{
			pInt("ImageSequence", "bool", "", 0),
			pInt("Width", "int", "Integer", 0),
			pInt("Height", "int", "Integer", 0),
			bfbx73.P("Path", "KString", "XRefUrl", "", ""),
		}},
		{"Geometry", "FbxMesh", []*fbx.Node{
			bfbx73.P("Color", "ColorRGB", "Color", "", float64(1), float64(1), float64(1)),
			pInt("Primary Visibility", "bool", "", 1),
			pInt("Casts Shadows", "bool", "", 1),
			pInt("Receive Shadows", "bool", "", 1),
		}},
		{"NodeAttribute", "FbxNull", []*fbx.Node{
			bfbx73.P("Size", "double", "Number", "", float64(100)),
			pInt("Look", "enum", "", 1),
		}},
		{"AnimationStack", "FbxAnimStack", []*fbx.Node{
			bfbx73.P("Description", "KString", "", "", ""),
			pTime("LocalStart"),
			pTime("LocalStop"),
			pTime("ReferenceStart"),
			pTime("ReferenceStop"),
		}},
		{"AnimationLayer", "FbxAnimLayer", []*fbx.Node{
			pAnimated("Weight", "Number", 100),
			pInt("Mute", "bool", "", 0),
			pInt("Solo", "bool", "", 0),
			pInt("Lock", "bool", "", 0),
			pInt("BlendMode", "enum", "", 0),
		}},
		{"AnimationCurveNode", "FbxAnimCurveNode", []*fbx.Node{
			bfbx73.P("d", "Compound", "", ""),
		}},
	}
}

// newDefinitions starts with templates only, counts are filled before writing
func (b *FBXBuilder) newDefinitions() *fbx.Node {
	d := bfbx73.Definitions().AddNodes(
		bfbx73.Version(100),
		bfbx73.Count(1),
		bfbx73.ObjectType("GlobalSettings").AddNodes(bfbx73.Count(1)),
	)
	for _, t := range propertyTemplates() {
		d.AddNode(bfbx73.ObjectType(t.objectType).AddNodes(
			bfbx73.Count(0),
			bfbx73.PropertyTemplate(t.class).AddNodes(
				bfbx73.Properties70().AddNodes(t.properties...),
			),
		))
	}
	return d
}

// SetActiveAnimStack names stack selected when the file is opened
func (b *FBXBuilder) SetActiveAnimStack(name string) {
	for _, p := range Child(b.document, "Properties70").Nodes {
		if len(p.Properties) == 5 && p.Properties[0] == "ActiveAnimStackName" {
			p.Properties[4] = name
		}
	}
}

// countDefinitions sets per type object counts, types without template are appended
func (b *FBXBuilder) countDefinitions() {
	byType := make(map[string]*fbx.Node)
	for _, ot := range Children(b.definitions, "ObjectType") {
		byType[PropString(ot, 0)] = ot
	}

	counts := make(map[string]int32)
	total := int32(1) // GlobalSettings
	for _, object := range b.objects.Nodes {
		if _, ok := byType[object.Name]; !ok {
			byType[object.Name] = bfbx73.ObjectType(object.Name)
			b.definitions.AddNode(byType[object.Name])
		}
		counts[object.Name]++
		total++
	}
	for name, ot := range byType {
		if name == "GlobalSettings" {
			continue
		}
		ot.GetOrAddNode(bfbx73.Count(0)).Properties[0] = counts[name]
		log.Debugf("fbx definitions: %d of %s", counts[name], name)
	}
	b.definitions.GetOrAddNode(bfbx73.Count(0)).Properties[0] = total
}

func (b *FBXBuilder) Root() *fbx.Node {
	return &b.f.Root
}

func (b *FBXBuilder) AddCache(key interface{}, value interface{}) {
	b.cache[key] = value
}

func (b *FBXBuilder) GetCached(key interface{}) interface{} {
	return b.cache[key]
}

func (b *FBXBuilder) GetCachedOr(key interface{}, create func() interface{}) interface{} {
	if v, ok := b.cache[key]; ok {
		return v
	}
	v := create()
	b.cache[key] = v
	return v
}

func (b *FBXBuilder) GenerateId() int64 {
	b.id++
	return b.id
}

func (b *FBXBuilder) AddObjects(nodes ...*fbx.Node)     { b.objects.AddNodes(nodes...) }
func (b *FBXBuilder) AddConnections(nodes ...*fbx.Node) { b.connections.AddNodes(nodes...) }

// Connect links child object to parent object ("OO")
func (b *FBXBuilder) Connect(child, parent int64) {
	b.AddConnections(bfbx73.C("OO", child, parent))
}

// ConnectProperty links child object to property of parent object ("OP")
func (b *FBXBuilder) ConnectProperty(child, parent int64, property string) {
	b.AddConnections(bfbx73.C("OP", child, parent, property))
}

// Write serializes document through a temp file, fbx.Write seeks back to patch node offsets
func (b *FBXBuilder) Write(w io.Writer) error {
	b.countDefinitions()

	if log.GetLevel() <= log.DebugLevel {
		log.Debug(b.f.SPrint())
	}

	tmp, err := os.CreateTemp("", "badger.*.fbx")
	if err != nil {
		return errors.Wrapf(err, "Unable to create temp file")
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := fbx.Write(tmp, b.f); err != nil {
		return errors.Wrapf(err, "Unable to serialize fbx")
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "Unable to rewind temp file")
	}
	if _, err := io.Copy(w, tmp); err != nil {
		return errors.Wrapf(err, "Unable to copy fbx")
	}
	return nil
}

// AddExportFile attaches a side file (texture) to the zip bundle
func (b *FBXBuilder) AddExportFile(name string, data []byte) {
	b.sideFiles[filepath.ToSlash(name)] = data
}

// WriteZip writes fbx as name followed by side files in name order
func (b *FBXBuilder) WriteZip(w io.Writer, name string) error {
	zw := zip.NewWriter(w)

	fw, err := zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "Unable to add %q to zip", name)
	}
	if err := b.Write(fw); err != nil {
		return err
	}

	names := make([]string, 0, len(b.sideFiles))
	for n := range b.sideFiles {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fw, err := zw.Create(n)
		if err != nil {
			return errors.Wrapf(err, "Unable to add %q to zip", n)
		}
		if _, err := fw.Write(b.sideFiles[n]); err != nil {
			return errors.Wrapf(err, "Unable to write %q to zip", n)
		}
	}
	return zw.Close()
}
