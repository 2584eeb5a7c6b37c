// Package inference turns a soil spectrum into predicted soil properties.
//
// The worker depends only on the Predictor interface. LinearModel is the
// artifact format shipped with the service: a YAML document holding one
// linear regression per predicted property, exported from the trained
// calibration.
//
//	method: PLSR_v1
//	inputs: 3
//	targets:
//	  - name: SOM
//	    intercept: 1.2
//	    coefficients: [0.5, -0.25, 2.0]
//
// LoadModel reads the artifact from a local path or an s3://bucket/key URL.
// A model that cannot be loaded is a startup error.
package inference
