package ifc

import (
	"fmt"
	"strings"
)

// Fixed entity ids referenced across sections.
const (
	idProject         = 1
	idOwnerHistory    = 2
	idContext         = 3
	idUnits           = 4
	idSite            = 33
	idShape           = 38
	idCRS             = 39
	idSitePlacement   = 51
	idFaceSet         = 53
	idElement         = 76
	idPointList       = 94
	idPropertyRel     = 116
	idPropertySet     = 139
	idFirstProperty   = 142
	idTrueNorth       = 900
	idWorldOrigin     = 901
	idLocalPlacement  = 1006
	firstDynamicID    = 1101
	timestampLayout   = "2006-01-02T15:04:05"
	propertyDateStyle = "2006-01-02"
)

func (w *Writer) writeHeader() {
	m := w.meta
	app := m.ApplicationName + " " + m.ApplicationVersion

	fmt.Fprintf(&w.buf, "ISO-10303-21;\nHEADER;\n")
	fmt.Fprintf(&w.buf, "FILE_DESCRIPTION(('ViewDefinition [ReferenceView]','Option [Terrengmodell: On]'),'2;1');\n")
	fmt.Fprintf(&w.buf, "FILE_NAME(%s,%s,(%s),(%s),%s,%s,'');\n",
		quote(m.ProjectName+".ifc"),
		quote(m.Timestamp.Format(timestampLayout)),
		quote(m.Author),
		quote(m.Organization),
		quote(app),
		quote(m.ApplicationName+" build "+m.ApplicationVersion),
	)
	fmt.Fprintf(&w.buf, "FILE_SCHEMA(('IFC4'));\nENDSEC;\nDATA;\n")

	w.comment("APPLICATION")
	w.entity(34, "IFCPERSON($,$,%s,$,$,$,$,$)", quote(m.Author))
	w.entity(35, "IFCORGANIZATION($,%s,$,$,$)", quote(m.Organization))
	w.entity(36, "IFCORGANIZATION($,%s,$,$,$)", quote(m.ApplicationName))
	w.entity(6, "IFCPERSONANDORGANIZATION(#34,#35,$)")
	w.entity(7, "IFCAPPLICATION(#36,%s,%s,%s)",
		quote(m.ApplicationVersion), quote(m.ApplicationName), quote(m.ApplicationName))

	w.comment("PROJECT")
	w.entity(idProject, "IFCPROJECT(%s,#%d,%s,$,$,$,$,(#%d),#%d)",
		w.guid(idProject), idOwnerHistory, quote(m.ProjectName), idContext, idUnits)
	w.entity(idSite, "IFCSITE(%s,#%d,%s,%s,$,#%d,$,$,.ELEMENT.,$,$,$,$,$)",
		w.guid(idSite), idOwnerHistory, quote(m.SiteName), optional(m.SiteDescription), idSitePlacement)
	w.entity(idOwnerHistory, "IFCOWNERHISTORY(#6,#7,$,.NOCHANGE.,$,$,$,%d)", m.Timestamp.Unix())
	w.entity(idContext, "IFCGEOMETRICREPRESENTATIONCONTEXT($,'Model',3,1.E-05,#8,#%d)", idTrueNorth)
	w.entity(5, "IFCRELAGGREGATES(%s,#%d,$,$,#%d,(#%d))", w.guid(5), idOwnerHistory, idProject, idSite)
	w.entity(8, "IFCAXIS2PLACEMENT3D(#%d,$,$)", idWorldOrigin)
}

func (w *Writer) writeModel() {
	m := w.meta

	w.comment("MODEL")
	w.entity(10, "IFCGEOMETRICREPRESENTATIONSUBCONTEXT('Body','Model',*,*,*,*,#%d,0.01,.MODEL_VIEW.,$)", idContext)
	w.entity(11, "IFCMAPCONVERSION(#%d,#%d,0.,0.,0.,1.,0.,1.)", idContext, idCRS)
	w.entity(idCRS, "IFCPROJECTEDCRS(%s,%s,%s,%s,%s,%s,$)",
		quote(m.CRSIdentifier()), optional(m.CRSName), optional(m.GeodeticDatum),
		optional(m.VerticalDatum), optional(m.MapProjection), optional(m.CRSName))
	w.entity(idSitePlacement, "IFCLOCALPLACEMENT($,#1003)")
	w.entity(52, "IFCRELCONTAINEDINSPATIALSTRUCTURE(%s,#%d,$,$,(#%d),#%d)",
		w.guid(52), idOwnerHistory, idElement, idSite)
	w.entity(54, "IFCPRESENTATIONLAYERASSIGNMENT(%s,$,(#%d,#%d),$)", quote(m.Layer), idFaceSet, idShape)

	w.comment("UNITS")
	w.entity(idUnits, "IFCUNITASSIGNMENT((#12,#13,#18,#19,#20,#26))")
	w.entity(12, "IFCSIUNIT(*,.LENGTHUNIT.,$,.METRE.)")
	w.entity(13, "IFCSIUNIT(*,.AREAUNIT.,$,.SQUARE_METRE.)")
	w.entity(18, "IFCSIUNIT(*,.MASSUNIT.,.KILO.,.GRAM.)")
	w.entity(19, "IFCSIUNIT(*,.PLANEANGLEUNIT.,$,.RADIAN.)")
	w.entity(20, "IFCSIUNIT(*,.SOLIDANGLEUNIT.,$,.STERADIAN.)")
	w.entity(26, "IFCSIUNIT(*,.VOLUMEUNIT.,$,.CUBIC_METRE.)")

	w.comment("TERRAIN MODEL")
	w.entity(idShape, "IFCSHAPEREPRESENTATION(#10,'Body','Tessellation',(#%d))", idFaceSet)
	w.entity(55, "IFCPRODUCTDEFINITIONSHAPE($,$,(#%d))", idShape)
	w.entity(idElement, "IFCGEOGRAPHICELEMENT(%s,#%d,%s,$,$,#%d,#55,$,.TERRAIN.)",
		w.guid(idElement), idOwnerHistory, quote(m.SiteName+" terreng"), idLocalPlacement)

	w.comment("WORLD REFERENCE POINT")
	w.entity(idTrueNorth, "IFCDIRECTION((0.,1.))")
	w.entity(idWorldOrigin, "IFCCARTESIANPOINT((0.,0.,0.))")

	w.comment("LOCAL COORDINATE SYSTEM")
	w.entity(1000, "IFCCARTESIANPOINT((0.,0.,0.))")
	w.entity(1001, "IFCDIRECTION((0.,0.,1.))")
	w.entity(1002, "IFCDIRECTION((1.,0.,0.))")
	w.entity(1003, "IFCAXIS2PLACEMENT3D(#1000,$,$)")
	w.entity(1004, "IFCAXIS2PLACEMENT3D(#1000,#1001,#1002)")
	w.entity(1005, "IFCLOCALPLACEMENT($,#1004)")
	w.entity(idLocalPlacement, "IFCLOCALPLACEMENT(#1005,#1004)")
}

func (w *Writer) writeStyle() {
	w.comment("STYLE")
	w.entity(164, "IFCCOLOURRGB('R:255, G:0, B:0',1.,0.,0.)")
	w.entity(166, "IFCCOLOURRGB($,0.6823529601097107,0.09019608050584793,0.)")
	w.entity(165, "IFCSURFACESTYLESHADING(#166,0.)")
	w.entity(163, "IFCSURFACESTYLE('Terreng',.BOTH.,(#165))")
	w.entity(162, "IFCCURVESTYLE('Terreng kant',$,$,#164,$)")
	w.entity(161, "IFCSTYLEDITEM(#%d,(#162,#163),$)", idFaceSet)
}

type property struct {
	name, value string
}

func (w *Writer) writeProperties() {
	m := w.meta
	props := []property{
		{"Prosjekt", m.ProjectName},
		{"Tomt", m.SiteName},
		{"Beskrivelse", m.SiteDescription},
		{"Utarbeidet_av", m.Author},
		{"Programvare", m.ApplicationName + " " + m.ApplicationVersion},
		{"Koordinatsystem", m.CRSIdentifier()},
		{"Generert", m.Timestamp.Format(propertyDateStyle)},
	}

	refs := make([]string, len(props))
	for i := range props {
		refs[i] = fmt.Sprintf("#%d", idFirstProperty+i)
	}

	w.comment("PROPERTIES")
	w.entity(idPropertyRel, "IFCRELDEFINESBYPROPERTIES(%s,#%d,$,$,(#%d),#%d)",
		w.guid(idPropertyRel), idOwnerHistory, idElement, idPropertySet)
	w.entity(idPropertySet, "IFCPROPERTYSET(%s,#%d,'Terrengmodell',$,(%s))",
		w.guid(idPropertySet), idOwnerHistory, strings.Join(refs, ","))
	for i, p := range props {
		w.entity(idFirstProperty+i, "IFCPROPERTYSINGLEVALUE(%s,$,IFCLABEL(%s),$)", quote(p.name), quote(p.value))
	}
}

func (w *Writer) comment(section string) {
	fmt.Fprintf(&w.buf, "\n/* %s */\n", section)
}

func (w *Writer) entity(id int, format string, args ...any) {
	fmt.Fprintf(&w.buf, "#%d=", id)
	fmt.Fprintf(&w.buf, format, args...)
	w.buf.WriteString(";\n")
}
