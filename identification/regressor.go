package identification

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/viam-labs/postureopt/referenceframe"
)

// ParamsPerLink is the number of gravity parameters per link: the mass m and
// the first moment m*c (three components).
const ParamsPerLink = 4

// NumParams returns the length of the gravity parameter vector for a model.
func NumParams(model *referenceframe.Model) int {
	return ParamsPerLink * model.NumLinks()
}

// TruthParams assembles the ground-truth gravity parameter vector from the
// model's URDF inertials: per link [m, m*cx, m*cy, m*cz].
func TruthParams(model *referenceframe.Model) []float64 {
	params := make([]float64, NumParams(model))
	for i, link := range model.Links() {
		params[ParamsPerLink*i] = link.Mass
		params[ParamsPerLink*i+1] = link.Mass * link.CenterOfMass.X
		params[ParamsPerLink*i+2] = link.Mass * link.CenterOfMass.Y
		params[ParamsPerLink*i+3] = link.Mass * link.CenterOfMass.Z
	}
	return params
}

// GravityRegressor computes the matrix Y(q) such that the static joint
// torques holding the robot at q satisfy tau = Y(q) * phi, where phi is the
// gravity parameter vector laid out as in TruthParams.
//
// For a revolute joint with world axis z at point p_j, the gravity torque
// contribution of a distal link is g . (z x (p_com - p_j)) per unit mass;
// splitting p_com = p_link + R*c makes the row linear in [m, m*c]. Prismatic
// joints contribute g . z per unit mass and nothing through the first moment.
func GravityRegressor(model *referenceframe.Model, gravity r3.Vector, q []float64) (*mat.Dense, error) {
	poses, err := model.LinkPoses(q)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute link poses for regressor")
	}

	dofs := len(model.DoF())
	regressor := mat.NewDense(dofs, NumParams(model), nil)
	joints := movableJoints(model)
	for j, joint := range joints {
		// child link frame coincides with the joint frame
		childIdx := model.LinkIndex(joint.Child)
		jointPose := poses[childIdx]
		axisWorld := jointPose.Orientation().MulVec(joint.Axis)

		for i := 0; i < model.NumLinks(); i++ {
			if !model.MovesWithJoint(j, i) {
				continue
			}
			linkPose := poses[i]
			if joint.Type == referenceframe.PrismaticJoint {
				regressor.Set(j, ParamsPerLink*i, gravity.Dot(axisWorld))
				continue
			}
			// coefficient of m_i
			arm := linkPose.Point().Sub(jointPose.Point())
			regressor.Set(j, ParamsPerLink*i, gravity.Dot(axisWorld.Cross(arm)))
			// coefficients of the first moment l_i = m_i * c_i:
			// g . (z x R*l) = l . R^T (g x z)
			moment := linkPose.Orientation().Transpose().MulVec(gravity.Cross(axisWorld))
			regressor.Set(j, ParamsPerLink*i+1, moment.X)
			regressor.Set(j, ParamsPerLink*i+2, moment.Y)
			regressor.Set(j, ParamsPerLink*i+3, moment.Z)
		}
	}
	return regressor, nil
}

// movableJoints returns the model's movable joints in DoF order.
func movableJoints(model *referenceframe.Model) []*referenceframe.Joint {
	joints := make([]*referenceframe.Joint, 0, len(model.DoF()))
	for _, joint := range model.Joints() {
		if joint.Movable() {
			joints = append(joints, joint)
		}
	}
	return joints
}
