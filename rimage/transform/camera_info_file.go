package transform

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ROS names for the distortion models in sensor_msgs/CameraInfo.
const (
	ROSPlumbBob           = "plumb_bob"
	ROSRationalPolynomial = "rational_polynomial"
)

// CameraInfoFile is the YAML layout written by ROS camera_calibration and read by
// camera_info_manager.
type CameraInfoFile struct {
	ImageWidth             int        `yaml:"image_width"`
	ImageHeight            int        `yaml:"image_height"`
	CameraName             string     `yaml:"camera_name"`
	CameraMatrix           yamlMatrix `yaml:"camera_matrix"`
	DistortionModel        string     `yaml:"distortion_model"`
	DistortionCoefficients yamlMatrix `yaml:"distortion_coefficients"`
	RectificationMatrix    yamlMatrix `yaml:"rectification_matrix"`
	ProjectionMatrix       yamlMatrix `yaml:"projection_matrix"`
}

type yamlMatrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Data []float64 `yaml:"data"`
}

// ROSDistortion converts a Distorter into the CameraInfo model name and D vector. ROS orders the
// coefficients k1, k2, p1, p2, k3[, k4, k5, k6].
func ROSDistortion(d Distorter) (string, []float64) {
	switch dist := d.(type) {
	case *RationalPolynomial:
		if dist == nil {
			break
		}
		return ROSRationalPolynomial, []float64{
			dist.RadialK1, dist.RadialK2, dist.TangentialP1, dist.TangentialP2,
			dist.RadialK3, dist.RadialK4, dist.RadialK5, dist.RadialK6,
		}
	case *BrownConrady:
		if dist == nil {
			break
		}
		return ROSPlumbBob, []float64{
			dist.RadialK1, dist.RadialK2, dist.TangentialP1, dist.TangentialP2, dist.RadialK3,
		}
	}
	return ROSPlumbBob, []float64{0, 0, 0, 0, 0}
}

// DistorterFromROS is the inverse of ROSDistortion.
func DistorterFromROS(model string, d []float64) (Distorter, error) {
	get := func(i int) float64 {
		if i < len(d) {
			return d[i]
		}
		return 0
	}
	switch model {
	case ROSPlumbBob:
		if len(d) > 5 {
			return nil, errors.Errorf("plumb_bob takes at most 5 coefficients, got %d", len(d))
		}
		return &BrownConrady{
			RadialK1: get(0), RadialK2: get(1), TangentialP1: get(2), TangentialP2: get(3), RadialK3: get(4),
		}, nil
	case ROSRationalPolynomial:
		if len(d) > 8 {
			return nil, errors.Errorf("rational_polynomial takes at most 8 coefficients, got %d", len(d))
		}
		return &RationalPolynomial{
			RadialK1: get(0), RadialK2: get(1), TangentialP1: get(2), TangentialP2: get(3),
			RadialK3: get(4), RadialK4: get(5), RadialK5: get(6), RadialK6: get(7),
		}, nil
	default:
		return nil, errors.Errorf("unsupported distortion model %q", model)
	}
}

// ReadCameraInfoFile loads a ROS camera_info YAML file into a camera model.
func ReadCameraInfoFile(path string) (*PinholeCameraModel, string, error) {
	//nolint:gosec
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrap(err, "error reading camera info file")
	}
	var info CameraInfoFile
	if err := yaml.Unmarshal(raw, &info); err != nil {
		return nil, "", errors.Wrapf(err, "error parsing camera info file %q", path)
	}
	model, err := info.CameraModel()
	if err != nil {
		return nil, "", errors.Wrapf(err, "invalid camera info file %q", path)
	}
	return model, info.CameraName, nil
}

// CameraModel converts the file contents into a validated camera model.
func (info *CameraInfoFile) CameraModel() (*PinholeCameraModel, error) {
	k := info.CameraMatrix.Data
	if len(k) != 9 {
		return nil, errors.Errorf("camera_matrix must have 9 entries, has %d", len(k))
	}
	dist, err := DistorterFromROS(info.DistortionModel, info.DistortionCoefficients.Data)
	if err != nil {
		return nil, err
	}
	model := &PinholeCameraModel{
		PinholeCameraIntrinsics: &PinholeCameraIntrinsics{
			Width:  info.ImageWidth,
			Height: info.ImageHeight,
			Fx:     k[0],
			Fy:     k[4],
			Ppx:    k[2],
			Ppy:    k[5],
		},
		Distortion: dist,
	}
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	return model, nil
}

// WriteCameraInfoFile saves a camera model in the ROS camera_info YAML layout.
func WriteCameraInfoFile(path, cameraName string, model *PinholeCameraModel) error {
	if err := model.CheckValid(); err != nil {
		return err
	}
	distModel, d := ROSDistortion(model.Distortion)
	i := model.PinholeCameraIntrinsics
	info := CameraInfoFile{
		ImageWidth:  i.Width,
		ImageHeight: i.Height,
		CameraName:  cameraName,
		CameraMatrix: yamlMatrix{Rows: 3, Cols: 3, Data: []float64{
			i.Fx, 0, i.Ppx,
			0, i.Fy, i.Ppy,
			0, 0, 1,
		}},
		DistortionModel:        distModel,
		DistortionCoefficients: yamlMatrix{Rows: 1, Cols: len(d), Data: d},
		RectificationMatrix:    yamlMatrix{Rows: 3, Cols: 3, Data: []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}},
		ProjectionMatrix: yamlMatrix{Rows: 3, Cols: 4, Data: []float64{
			i.Fx, 0, i.Ppx, 0,
			0, i.Fy, i.Ppy, 0,
			0, 0, 1, 0,
		}},
	}
	out, err := yaml.Marshal(&info)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}
