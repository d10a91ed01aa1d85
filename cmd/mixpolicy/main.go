// Mixpolicy serves the dynamic audio mix policy: clients register mixes
// over HTTP and the engine routes each new playback or capture stream to
// the first registered mix whose criteria accept it.
//
// Usage:
//
//	# Start the policy server
//	mixpolicy run --config /etc/mixpolicy/config.yaml
//
//	# Check a mix file against the registry rules
//	mixpolicy lint mixes.yaml
//
//	# Encode a mix file as a parcel and back
//	mixpolicy encode mixes.yaml --out mixes.parcel
//	mixpolicy decode mixes.parcel
//
//	# Evaluate streams against a mix file
//	mixpolicy eval --mixes mixes.yaml --class playback --usage media
//	mixpolicy eval --mixes mixes.yaml --streams streams.yaml
package main

func main() {
	Execute()
}
