// Package geom holds the small amount of linear algebra morphology
// processing needs: 3D points, principal component axes, plane fitting and
// projection, circle sampling and polygon areas. Everything is a pure
// function of its inputs.
package geom
