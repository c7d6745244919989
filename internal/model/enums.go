package model

type RegistrationStatus string

const (
	RegistrationStatusRegistered RegistrationStatus = "registered"
	RegistrationStatusApproved   RegistrationStatus = "approved"
	RegistrationStatusDenied     RegistrationStatus = "denied"
)

type ScannerState string

const (
	ScannerStateIdle     ScannerState = "idle"
	ScannerStateScanning ScannerState = "scanning"
	ScannerStatePaused   ScannerState = "paused"
)

// CameraError classifies why a scanner client could not start camera
// capture. Reported by the client and recorded on the session so operators
// see why capture is unavailable instead of a silent manual-entry fallback.
type CameraError string

const (
	CameraErrorPermissionDenied CameraError = "permission_denied"
	CameraErrorNoCamera         CameraError = "no_camera"
	CameraErrorCameraBusy       CameraError = "camera_busy"
	CameraErrorUnsupported      CameraError = "unsupported_browser"
	CameraErrorInsecureContext  CameraError = "insecure_context"
)

func (e CameraError) Valid() bool {
	switch e {
	case CameraErrorPermissionDenied, CameraErrorNoCamera, CameraErrorCameraBusy,
		CameraErrorUnsupported, CameraErrorInsecureContext:
		return true
	}
	return false
}

type StaffRole string

const (
	StaffRoleVolunteer StaffRole = "volunteer"
	StaffRoleOrganizer StaffRole = "organizer"
)
