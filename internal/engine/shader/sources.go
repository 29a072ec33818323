package shader

// OccluderVertex transforms object-space occluder triangles straight into
// the shadow texture's clip space.
const OccluderVertex = `#version 410 core
layout(location = 0) in vec3 aPos;
uniform mat4 uMatrix;
out float vDepth;
void main() {
	gl_Position = uMatrix * vec4(aPos, 1.0);
	vDepth = gl_Position.z * 0.5 + 0.5;
}
`

// OccluderFragment writes an opaque silhouette, or depth for self shadowing.
const OccluderFragment = `#version 410 core
in float vDepth;
uniform int uStoreDepth;
out vec4 fragColor;
void main() {
	if (uStoreDepth != 0) {
		fragColor = vec4(vDepth, vDepth, vDepth, 1.0);
	} else {
		fragColor = vec4(0.0, 0.0, 0.0, 1.0);
	}
}
`

// CompositeVertex places receiver (or caster) triangles in the camera view
// and hands their light-space position to the fragment stage.
const CompositeVertex = `#version 410 core
layout(location = 0) in vec3 aPos;
uniform mat4 uViewProj;
uniform mat4 uModel;
uniform mat4 uWorldToLight;
out vec3 vLight;
void main() {
	vec4 world = uModel * vec4(aPos, 1.0);
	vLight = (uWorldToLight * world).xyz;
	gl_Position = uViewProj * world;
}
`

// CompositeFragment modulates the framebuffer by the projected shadow.
// uProjInfo is (far, radius, 1/radius); uStride is (dx, dy, size, 1/size)
// for the four-tap filter; uBias is (scaled bias, constant bias).
const CompositeFragment = `#version 410 core
in vec3 vLight;
uniform sampler2D uShadow;
uniform vec3 uProjInfo;
uniform vec4 uColor;
uniform vec4 uStride;
uniform vec2 uBias;
uniform int uDepthCompare;
out vec4 fragColor;

float tap(vec2 uv, float depth) {
	vec4 s = texture(uShadow, uv);
	if (uDepthCompare != 0) {
		return depth - uBias.x - uBias.y > s.r ? 1.0 : 0.0;
	}
	return s.a;
}

void main() {
	if (vLight.y < -uProjInfo.y || vLight.y > uProjInfo.x) {
		discard;
	}
	vec2 uv = vec2(0.5) + 0.5 * vLight.xz * uProjInfo.z;
	if (any(lessThan(uv, vec2(0.0))) || any(greaterThan(uv, vec2(1.0)))) {
		discard;
	}
	float depth = (vLight.y + uProjInfo.y) / (uProjInfo.x + uProjInfo.y);
	float shade = 0.25 * (
		tap(uv + vec2(-uStride.x, -uStride.y), depth) +
		tap(uv + vec2(uStride.x, -uStride.y), depth) +
		tap(uv + vec2(-uStride.x, uStride.y), depth) +
		tap(uv + vec2(uStride.x, uStride.y), depth));
	fragColor = vec4(mix(vec3(1.0), uColor.rgb, shade * uColor.a), 1.0);
}
`

// BlobVertex draws a receiver mesh with precomputed blob coordinates.
const BlobVertex = `#version 410 core
layout(location = 0) in vec3 aPos;
layout(location = 1) in vec2 aUV;
uniform mat4 uViewProj;
out vec2 vUV;
void main() {
	vUV = aUV;
	gl_Position = uViewProj * vec4(aPos, 1.0);
}
`

// BlobFragment samples the generic blob texture.
const BlobFragment = `#version 410 core
in vec2 vUV;
uniform sampler2D uBlob;
out vec4 fragColor;
void main() {
	fragColor = texture(uBlob, vUV);
}
`
