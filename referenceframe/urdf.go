// Package referenceframe provides the kinematic model consumed by posture
// optimization: URDF parsing, joint limits, and pure forward kinematics.
package referenceframe

import (
	"encoding/xml"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viam-labs/postureopt/spatialmath"
)

// Supported URDF joint types.
const (
	ContinuousJoint = "continuous"
	RevoluteJoint   = "revolute"
	PrismaticJoint  = "prismatic"
	FixedJoint      = "fixed"
)

// ErrNoModelInformation is returned when URDF data contains nothing actionable.
var ErrNoModelInformation = errors.New("no model information found in URDF data")

// URDFConfig represents the supported fields in a Universal Robot Description Format (URDF) file.
type URDFConfig struct {
	XMLName xml.Name    `xml:"robot"`
	Name    string      `xml:"name,attr"`
	Links   []URDFLink  `xml:"link"`
	Joints  []URDFJoint `xml:"joint"`
}

// URDFLink details the XML used in a URDF link element.
type URDFLink struct {
	XMLName   xml.Name        `xml:"link"`
	Name      string          `xml:"name,attr"`
	Inertial  *URDFInertial   `xml:"inertial,omitempty"`
	Collision []URDFCollision `xml:"collision"`
}

// URDFInertial holds the mass and center of mass of a link.
type URDFInertial struct {
	Origin *URDFPose `xml:"origin,omitempty"`
	Mass   URDFMass  `xml:"mass"`
}

// URDFMass is the mass element of an inertial block.
type URDFMass struct {
	Value float64 `xml:"value,attr"`
}

// URDFCollision is one collision element of a link, a geometry at an optional offset.
type URDFCollision struct {
	Origin   *URDFPose    `xml:"origin,omitempty"`
	Geometry URDFGeometry `xml:"geometry"`
}

// URDFGeometry is a single geometric primitive; exactly one member is expected to be set.
type URDFGeometry struct {
	Box      *URDFBox      `xml:"box,omitempty"`
	Cylinder *URDFCylinder `xml:"cylinder,omitempty"`
	Sphere   *URDFSphere   `xml:"sphere,omitempty"`
}

// URDFBox is a box primitive with full side lengths.
type URDFBox struct {
	Size string `xml:"size,attr"`
}

// URDFCylinder is a cylinder primitive aligned with the local Z axis.
type URDFCylinder struct {
	Radius float64 `xml:"radius,attr"`
	Length float64 `xml:"length,attr"`
}

// URDFSphere is a sphere primitive.
type URDFSphere struct {
	Radius float64 `xml:"radius,attr"`
}

// URDFPose is an origin element: an xyz translation and fixed-axis rpy rotation.
type URDFPose struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

// Parse converts the origin element into a pose. An absent element is the identity.
func (up *URDFPose) Parse() (spatialmath.Pose, error) {
	if up == nil {
		return spatialmath.NewZeroPose(), nil
	}
	xyz, err := spaceDelimitedVector(up.XYZ)
	if err != nil {
		return spatialmath.Pose{}, errors.Wrap(err, "failed to parse origin xyz")
	}
	rpy := r3.Vector{}
	if up.RPY != "" {
		if rpy, err = spaceDelimitedVector(up.RPY); err != nil {
			return spatialmath.Pose{}, errors.Wrap(err, "failed to parse origin rpy")
		}
	}
	return spatialmath.NewPose(spatialmath.NewRotationFromRPY(rpy.X, rpy.Y, rpy.Z), xyz), nil
}

// URDFAxis is the rotation (or translation) axis of a joint.
type URDFAxis struct {
	XYZ string `xml:"xyz,attr"`
}

// Parse converts the axis element into a vector. An absent element defaults to the X axis.
func (ua *URDFAxis) Parse() (r3.Vector, error) {
	if ua == nil || ua.XYZ == "" {
		return r3.Vector{X: 1}, nil
	}
	return spaceDelimitedVector(ua.XYZ)
}

// URDFLimit holds the lower and upper position limits of a joint, in radians
// for revolute joints and meters for prismatic joints.
type URDFLimit struct {
	Lower float64 `xml:"lower,attr"`
	Upper float64 `xml:"upper,attr"`
}

// URDFFrame is a parent or child reference within a joint element.
type URDFFrame struct {
	Link string `xml:"link,attr"`
}

// URDFJoint details the XML used in a URDF joint element.
type URDFJoint struct {
	XMLName xml.Name   `xml:"joint"`
	Name    string     `xml:"name,attr"`
	Type    string     `xml:"type,attr"`
	Parent  URDFFrame  `xml:"parent"`
	Child   URDFFrame  `xml:"child"`
	Origin  *URDFPose  `xml:"origin,omitempty"`
	Axis    *URDFAxis  `xml:"axis,omitempty"`
	Limit   *URDFLimit `xml:"limit,omitempty"`
}

// ParseURDFFile reads a given file and parses the contained URDF XML data into a Model.
func ParseURDFFile(filename, modelName string) (*Model, error) {
	//nolint:gosec
	xmlData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read URDF file")
	}
	return ParseURDF(xmlData, modelName)
}

// ParseURDF converts raw URDF XML data into a Model. Link and joint ordering
// follows document order, which fixes the index layout used everywhere else.
func ParseURDF(xmlData []byte, modelName string) (*Model, error) {
	if len(xmlData) == 0 {
		return nil, ErrNoModelInformation
	}

	urdf := &URDFConfig{}
	if err := xml.Unmarshal(xmlData, urdf); err != nil {
		return nil, errors.Wrap(err, "failed to convert URDF data to equivalent URDFConfig struct")
	}
	if modelName == "" {
		modelName = urdf.Name
	}

	links := make([]*Link, 0, len(urdf.Links))
	for _, linkElem := range urdf.Links {
		link := &Link{Name: linkElem.Name}
		if linkElem.Inertial != nil {
			link.Mass = linkElem.Inertial.Mass.Value
			comPose, err := linkElem.Inertial.Origin.Parse()
			if err != nil {
				return nil, errors.Wrapf(err, "link %q", linkElem.Name)
			}
			link.CenterOfMass = comPose.Point()
		}
		for _, collisionElem := range linkElem.Collision {
			geom, err := parseCollision(collisionElem)
			if err != nil {
				return nil, errors.Wrapf(err, "link %q", linkElem.Name)
			}
			link.Collisions = append(link.Collisions, geom)
		}
		links = append(links, link)
	}

	joints := make([]*Joint, 0, len(urdf.Joints))
	for _, jointElem := range urdf.Joints {
		switch jointElem.Type {
		case ContinuousJoint, RevoluteJoint, PrismaticJoint, FixedJoint:
		default:
			return nil, errors.Errorf("unsupported joint type detected: %q", jointElem.Type)
		}

		origin, err := jointElem.Origin.Parse()
		if err != nil {
			return nil, errors.Wrapf(err, "joint %q", jointElem.Name)
		}
		axis, err := jointElem.Axis.Parse()
		if err != nil {
			return nil, errors.Wrapf(err, "joint %q", jointElem.Name)
		}

		joint := &Joint{
			Name:   jointElem.Name,
			Type:   jointElem.Type,
			Parent: jointElem.Parent.Link,
			Child:  jointElem.Child.Link,
			Origin: origin,
			Axis:   axis,
		}
		switch {
		case jointElem.Limit != nil:
			joint.Limit = Limit{Min: jointElem.Limit.Lower, Max: jointElem.Limit.Upper}
		case jointElem.Type == ContinuousJoint:
			joint.Limit = Limit{Min: -2 * math.Pi, Max: 2 * math.Pi}
		}
		joints = append(joints, joint)
	}

	return NewModel(modelName, links, joints)
}

// parseCollision converts one URDF collision element into a local-frame geometry.
func parseCollision(collision URDFCollision) (CollisionGeometry, error) {
	offset, err := collision.Origin.Parse()
	if err != nil {
		return CollisionGeometry{}, err
	}
	geom := CollisionGeometry{Offset: offset}
	switch {
	case collision.Geometry.Box != nil:
		size, err := spaceDelimitedVector(collision.Geometry.Box.Size)
		if err != nil {
			return CollisionGeometry{}, errors.Wrap(err, "failed to parse box size")
		}
		geom.HalfExtents = size.Mul(0.5)
	case collision.Geometry.Cylinder != nil:
		c := collision.Geometry.Cylinder
		geom.HalfExtents = r3.Vector{X: c.Radius, Y: c.Radius, Z: c.Length / 2}
	case collision.Geometry.Sphere != nil:
		r := collision.Geometry.Sphere.Radius
		geom.HalfExtents = r3.Vector{X: r, Y: r, Z: r}
	default:
		return CollisionGeometry{}, errors.New("collision element has no supported geometry")
	}
	return geom, nil
}

// spaceDelimitedVector parses a URDF "x y z" attribute value.
func spaceDelimitedVector(s string) (r3.Vector, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return r3.Vector{}, errors.Errorf("expected 3 space-delimited values, got %q", s)
	}
	var vals [3]float64
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return r3.Vector{}, errors.Wrapf(err, "bad float %q", field)
		}
		vals[i] = v
	}
	return r3.Vector{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}
