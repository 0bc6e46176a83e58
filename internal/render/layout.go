package render

// Field keys recognized by the renderer. The document generator fills these
// from the portal lookup page; the layout table below pins each one to a fixed
// position on the certificate so every generated document lines up identically.
const (
	FieldPermitNumber        = "permit_number"
	FieldLesseeID            = "lessee_id"
	FieldLesseeName          = "lessee_name"
	FieldLesseeMobile        = "lessee_mobile"
	FieldLeaseDetails        = "lease_details"
	FieldTehsil              = "tehsil"
	FieldDistrict            = "district"
	FieldQuantity            = "qty"
	FieldMineral             = "mineral"
	FieldLoadingFrom         = "loading_from"
	FieldDestination         = "destination"
	FieldDistance            = "distance"
	FieldGeneratedOn         = "generated_on"
	FieldValidUpto           = "valid_upto"
	FieldTravelDuration      = "travel_duration"
	FieldDestinationDistrict = "destination_district"
	FieldDestinationState    = "destination_state"
	FieldPitValue            = "pit_value"
	FieldRegistrationNumber  = "registration_number"
	FieldVehicleType         = "vehicle_type"
	FieldDriverName          = "driver_name"
	FieldDriverMobile        = "driver_mobile"
	FieldDriverDL            = "driver_dl"
	FieldSerialNumber        = "serial_number"
)

// A4 page size in PDF points.
const (
	pageWidth  = 595.28
	pageHeight = 841.89
)

const (
	fontFamily = "Helvetica"
	fontStyle  = "B"
	fontSize   = 6.0

	// Word wrapping for long free-text fields.
	wrapWordsPerLine = 4
	wrapMaxLines     = 3
	wrapLineSpacing  = 6.0
)

// QR placement: fixed size in the top-right corner over an opaque white patch
// so the code stays scannable regardless of the template artwork beneath it.
const (
	qrSize        = 40.0
	qrMarginRight = 70.0
	qrMarginTop   = 80.0
	qrPadding     = 5.0
)

type fieldSlot struct {
	x float64
	// y is the text baseline measured from the bottom edge, matching the
	// coordinate system the certificate template was charted in.
	y       float64
	wrapped bool
	digits  bool
}

// layout maps field keys to their slot on the certificate page.
var layout = map[string]fieldSlot{
	FieldPermitNumber: {x: 245, y: 716.5, digits: true},
	FieldLesseeID:     {x: 372, y: 717.5},

	FieldLesseeName:   {x: 100, y: 707, wrapped: true},
	FieldLesseeMobile: {x: 260, y: 707},
	FieldLeaseDetails: {x: 435, y: 708, wrapped: true},

	FieldTehsil:   {x: 100, y: 690},
	FieldDistrict: {x: 260, y: 690},
	FieldQuantity: {x: 405, y: 682},

	FieldMineral:     {x: 100, y: 672.5, wrapped: true},
	FieldLoadingFrom: {x: 265, y: 672.5},
	FieldDestination: {x: 435, y: 672.5},

	FieldDistance:    {x: 60, y: 641},
	FieldGeneratedOn: {x: 250, y: 648},
	FieldValidUpto:   {x: 435, y: 648},

	FieldTravelDuration:      {x: 110, y: 625},
	FieldDestinationDistrict: {x: 260, y: 630},
	FieldDestinationState:    {x: 435, y: 630},

	FieldPitValue: {x: 195, y: 607},

	FieldRegistrationNumber: {x: 150, y: 592},
	FieldDriverMobile:       {x: 160, y: 583},
	FieldVehicleType:        {x: 320, y: 592},
	FieldDriverDL:           {x: 320, y: 583},
	FieldDriverName:         {x: 470, y: 592},
}

// drawOrder fixes the iteration order over layout so identical field maps
// produce byte-identical overlays.
var drawOrder = []string{
	FieldPermitNumber,
	FieldLesseeID,
	FieldLesseeName,
	FieldLesseeMobile,
	FieldLeaseDetails,
	FieldTehsil,
	FieldDistrict,
	FieldQuantity,
	FieldMineral,
	FieldLoadingFrom,
	FieldDestination,
	FieldDistance,
	FieldGeneratedOn,
	FieldValidUpto,
	FieldTravelDuration,
	FieldDestinationDistrict,
	FieldDestinationState,
	FieldPitValue,
	FieldRegistrationNumber,
	FieldDriverMobile,
	FieldVehicleType,
	FieldDriverDL,
	FieldDriverName,
}
